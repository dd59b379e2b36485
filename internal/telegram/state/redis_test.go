package state

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisManager(t *testing.T) Manager {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisManager(client)
}

func TestRedisManagerDefaultsToIdle(t *testing.T) {
	m := newTestRedisManager(t)

	if st := m.GetState(42); st != StateIdle {
		t.Fatalf("state = %q, want idle", st)
	}
	if m.InProgress(42) {
		t.Fatal("fresh user must not be in progress")
	}
}

func TestRedisManagerStateRoundTrip(t *testing.T) {
	m := newTestRedisManager(t)
	const userID = int64(42)

	m.SetState(userID, State("choosing"))
	if st := m.GetState(userID); st != State("choosing") {
		t.Fatalf("state = %q, want choosing", st)
	}
	if !m.InProgress(userID) {
		t.Fatal("user with active state must be in progress")
	}

	m.ClearState(userID)
	if st := m.GetState(userID); st != StateIdle {
		t.Fatalf("state after clear = %q, want idle", st)
	}
}

func TestRedisManagerTempDataSurvivesJSON(t *testing.T) {
	m := newTestRedisManager(t)
	const userID = int64(7)

	m.SetTemp(userID, "service_id", int64(3))
	m.SetTemp(userID, "method", "BTC")

	// Numbers come back as float64 after the JSON round trip.
	if v, ok := m.GetTempInt64(userID, "service_id"); !ok || v != 3 {
		t.Fatalf("service_id = %v (%v), want 3", v, ok)
	}
	if v, ok := m.GetTemp(userID, "method"); !ok || v != "BTC" {
		t.Fatalf("method = %v (%v), want BTC", v, ok)
	}

	m.ClearTemp(userID, "method")
	if _, ok := m.GetTemp(userID, "method"); ok {
		t.Fatal("cleared key must be gone")
	}
}

func TestRedisManagerClearDropsSession(t *testing.T) {
	m := newTestRedisManager(t)
	const userID = int64(9)

	m.SetState(userID, State("uploading"))
	m.SetTemp(userID, "order_id", int64(12))
	m.Clear(userID)

	if m.InProgress(userID) {
		t.Fatal("cleared session must not be in progress")
	}
	if _, ok := m.GetTempInt64(userID, "order_id"); ok {
		t.Fatal("temp data must be dropped with the session")
	}
}
