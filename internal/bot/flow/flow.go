// Package flow defines the conversation state machine of the bot. All
// legal moves live in one transition table; anything else is rejected
// with ErrInvalidTransition instead of silently ignored.
package flow

import (
	"errors"
	"fmt"

	"github.com/rootzsu/servicebot/internal/telegram/state"
)

// Conversation states. StateIdle from the state package is the resting
// state between conversations.
const (
	SelectingService state.State = "selecting_service"
	SelectingPayment state.State = "selecting_payment"
	UploadingProof   state.State = "uploading_proof"
	AdminChat        state.State = "admin_chat"
)

// Event is something that happened in the conversation.
type Event string

const (
	EventStartOrder    Event = "start_order"
	EventServiceChosen Event = "service_chosen"
	EventPaymentChosen Event = "payment_chosen"
	EventProofUploaded Event = "proof_uploaded"
	EventOpenAdminChat Event = "open_admin_chat"
	EventCancel        Event = "cancel"
)

// ErrInvalidTransition is returned when an event is not legal in the
// current state.
var ErrInvalidTransition = errors.New("flow: invalid transition")

type transitionKey struct {
	from  state.State
	event Event
}

var transitions = map[transitionKey]state.State{
	{state.StateIdle, EventStartOrder}:     SelectingService,
	{SelectingService, EventServiceChosen}: SelectingPayment,
	{SelectingPayment, EventPaymentChosen}: UploadingProof,
	{UploadingProof, EventProofUploaded}:   state.StateIdle,

	{state.StateIdle, EventOpenAdminChat}: AdminChat,

	{SelectingService, EventCancel}: state.StateIdle,
	{SelectingPayment, EventCancel}: state.StateIdle,
	{UploadingProof, EventCancel}:   state.StateIdle,
	{AdminChat, EventCancel}:        state.StateIdle,
}

// Next returns the state reached by firing event in from. Unlisted
// pairs yield ErrInvalidTransition and leave the caller's state alone.
func Next(from state.State, event Event) (state.State, error) {
	to, ok := transitions[transitionKey{from, event}]
	if !ok {
		return from, fmt.Errorf("%w: %s in %s", ErrInvalidTransition, event, from)
	}
	return to, nil
}

// Machine drives the session manager through the transition table so
// every state change is validated in one place.
type Machine struct {
	sessions state.Manager
}

// NewMachine wraps a session manager.
func NewMachine(sessions state.Manager) *Machine {
	return &Machine{sessions: sessions}
}

// Fire applies event to the user's current state and persists the
// result. The stored state does not move on an invalid event.
func (m *Machine) Fire(userID int64, event Event) (state.State, error) {
	current := m.sessions.GetState(userID)
	next, err := Next(current, event)
	if err != nil {
		return current, err
	}
	m.sessions.SetState(userID, next)
	return next, nil
}

// Current returns the user's current state.
func (m *Machine) Current(userID int64) state.State {
	return m.sessions.GetState(userID)
}

// Reset forces the user back to idle and drops conversation data.
func (m *Machine) Reset(userID int64) {
	m.sessions.Clear(userID)
}
