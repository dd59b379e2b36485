package flow

import (
	"errors"
	"testing"

	"github.com/rootzsu/servicebot/internal/telegram/state"
)

func TestNextTransitionTable(t *testing.T) {
	cases := []struct {
		from  state.State
		event Event
		want  state.State
		ok    bool
	}{
		{state.StateIdle, EventStartOrder, SelectingService, true},
		{SelectingService, EventServiceChosen, SelectingPayment, true},
		{SelectingPayment, EventPaymentChosen, UploadingProof, true},
		{UploadingProof, EventProofUploaded, state.StateIdle, true},
		{state.StateIdle, EventOpenAdminChat, AdminChat, true},
		{SelectingService, EventCancel, state.StateIdle, true},
		{SelectingPayment, EventCancel, state.StateIdle, true},
		{UploadingProof, EventCancel, state.StateIdle, true},
		{AdminChat, EventCancel, state.StateIdle, true},

		// Out-of-sequence events must be rejected.
		{state.StateIdle, EventServiceChosen, state.StateIdle, false},
		{state.StateIdle, EventProofUploaded, state.StateIdle, false},
		{state.StateIdle, EventCancel, state.StateIdle, false},
		{SelectingService, EventPaymentChosen, SelectingService, false},
		{SelectingService, EventStartOrder, SelectingService, false},
		{SelectingPayment, EventProofUploaded, SelectingPayment, false},
		{UploadingProof, EventServiceChosen, UploadingProof, false},
		{AdminChat, EventStartOrder, AdminChat, false},
	}
	for _, tc := range cases {
		got, err := Next(tc.from, tc.event)
		if tc.ok && err != nil {
			t.Errorf("Next(%s, %s): unexpected error %v", tc.from, tc.event, err)
			continue
		}
		if !tc.ok && !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("Next(%s, %s): err = %v, want ErrInvalidTransition", tc.from, tc.event, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Next(%s, %s) = %s, want %s", tc.from, tc.event, got, tc.want)
		}
	}
}

func TestMachineFirePersistsState(t *testing.T) {
	m := NewMachine(state.NewMemoryManager())
	const userID = int64(42)

	for _, step := range []struct {
		event Event
		want  state.State
	}{
		{EventStartOrder, SelectingService},
		{EventServiceChosen, SelectingPayment},
		{EventPaymentChosen, UploadingProof},
		{EventProofUploaded, state.StateIdle},
	} {
		got, err := m.Fire(userID, step.event)
		if err != nil {
			t.Fatalf("fire %s: %v", step.event, err)
		}
		if got != step.want {
			t.Fatalf("fire %s = %s, want %s", step.event, got, step.want)
		}
		if m.Current(userID) != step.want {
			t.Fatalf("persisted state = %s, want %s", m.Current(userID), step.want)
		}
	}
}

func TestMachineRejectedEventLeavesStateAlone(t *testing.T) {
	m := NewMachine(state.NewMemoryManager())
	const userID = int64(7)

	if _, err := m.Fire(userID, EventStartOrder); err != nil {
		t.Fatalf("start: %v", err)
	}
	got, err := m.Fire(userID, EventProofUploaded)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	if got != SelectingService || m.Current(userID) != SelectingService {
		t.Fatalf("state moved to %s on a rejected event", m.Current(userID))
	}
}

func TestMachineResetReturnsToIdle(t *testing.T) {
	m := NewMachine(state.NewMemoryManager())
	const userID = int64(9)

	_, _ = m.Fire(userID, EventStartOrder)
	m.Reset(userID)
	if m.Current(userID) != state.StateIdle {
		t.Fatalf("state after reset = %s, want idle", m.Current(userID))
	}
}
