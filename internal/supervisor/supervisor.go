// Package supervisor owns the bot child process for the dashboard:
// start, stop and liveness without any global process handle.
package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rootzsu/servicebot/internal/logger"
)

// ErrAlreadyRunning is returned by Start when the child is alive.
var ErrAlreadyRunning = errors.New("supervisor: process already running")

// ErrNotRunning is returned by Stop when there is nothing to stop.
var ErrNotRunning = errors.New("supervisor: process not running")

// stopGrace is how long a child gets to exit after SIGTERM before
// SIGKILL.
const stopGrace = 5 * time.Second

// Supervisor controls a single child process.
type Supervisor struct {
	command string
	args    []string

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
}

// New constructs a supervisor for the given command line.
func New(command string, args ...string) *Supervisor {
	return &Supervisor{command: command, args: args}
}

// Start launches the child process. The child inherits stdout/stderr so
// its logs land next to the dashboard's own output.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return ErrAlreadyRunning
	}

	cmd := exec.Command(s.command, s.args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return err
	}

	done := make(chan struct{})
	s.cmd = cmd
	s.done = done

	logger.Info(ctx, "supervisor", "process.started",
		slog.String("command", s.command),
		slog.Int("pid", cmd.Process.Pid),
	)

	go s.reap(cmd, done)
	return nil
}

// reap waits for the child and clears the running handle on exit, so a
// child that dies on its own is observed without a Stop call.
func (s *Supervisor) reap(cmd *exec.Cmd, done chan struct{}) {
	err := cmd.Wait()

	s.mu.Lock()
	if s.cmd == cmd {
		s.cmd = nil
		s.done = nil
	}
	s.mu.Unlock()
	close(done)

	attrs := []slog.Attr{slog.Int("pid", cmd.Process.Pid)}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
	}
	logger.Info(context.Background(), "supervisor", "process.exited", attrs...)
}

// Stop terminates the child: SIGTERM first, SIGKILL after the grace
// period. It returns once the process has been reaped.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	cmd := s.cmd
	done := s.done
	s.mu.Unlock()

	if cmd == nil {
		return ErrNotRunning
	}

	pid := cmd.Process.Pid
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return err
	}

	select {
	case <-done:
	case <-time.After(stopGrace):
		logger.Warn(ctx, "supervisor", "process.kill",
			slog.Int("pid", pid),
		)
		_ = cmd.Process.Kill()
		<-done
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return ctx.Err()
	}

	logger.Info(ctx, "supervisor", "process.stopped",
		slog.Int("pid", pid),
	)
	return nil
}

// Running reports whether the child process is currently alive.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd != nil
}

// PID returns the child's process id, or 0 when not running.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil {
		return 0
	}
	return s.cmd.Process.Pid
}
