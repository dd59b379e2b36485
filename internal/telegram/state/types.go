package state

import tele "gopkg.in/telebot.v4"

// State names a step of a user conversation.
type State string

// StateIdle is the resting state between conversations.
const StateIdle State = "idle"

// Session holds one user's conversation state plus the temporary values
// collected along the way (chosen service, created order).
type Session struct {
	State    State
	TempData map[string]interface{}
}

// Manager stores sessions keyed by Telegram user ID. Implementations
// are safe for concurrent use; per-user updates are last-writer-wins.
type Manager interface {
	Get(userID int64) *Session
	Set(userID int64, state State)
	SetTemp(userID int64, key string, value interface{})
	ClearTemp(userID int64, key string)
	GetTemp(userID int64, key string) (interface{}, bool)
	GetTempInt64(userID int64, key string) (int64, bool)
	Clear(userID int64)

	SetState(userID int64, st State)
	GetState(userID int64) State
	HasState(userID int64) bool
	ClearState(userID int64)

	// InProgress reports whether the user has an active conversation,
	// i.e. a state other than idle.
	InProgress(userID int64) bool

	// ManagerHandler dispatches the update to the handler registered
	// for the user's current state.
	ManagerHandler(c tele.Context) error
}
