package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStartStopLifecycle(t *testing.T) {
	s := New("sleep", "60")
	ctx := context.Background()

	if s.Running() {
		t.Fatal("fresh supervisor must not be running")
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !s.Running() {
		t.Fatal("supervisor must report running after start")
	}
	if s.PID() == 0 {
		t.Fatal("running child must have a pid")
	}

	if err := s.Start(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second start: err = %v, want ErrAlreadyRunning", err)
	}

	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if s.Running() {
		t.Fatal("supervisor must not report running after stop")
	}
	if s.PID() != 0 {
		t.Fatal("pid must be cleared after stop")
	}
}

func TestStopWithoutStart(t *testing.T) {
	s := New("sleep", "60")
	if err := s.Stop(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("err = %v, want ErrNotRunning", err)
	}
}

func TestNaturalExitIsObserved(t *testing.T) {
	s := New("true")
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for s.Running() {
		if time.Now().After(deadline) {
			t.Fatal("child exit was not observed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// A fresh start must be possible after the child exited on its own.
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	_ = s.Stop(context.Background())
}