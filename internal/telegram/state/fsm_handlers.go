package state

import tele "gopkg.in/telebot.v4"

// fsmHandlers maps a conversation state to the handler that consumes
// text/photo updates while a user sits in that state. Populated once
// during app wiring, read by ManagerHandler afterwards.
var fsmHandlers = map[State]tele.HandlerFunc{}

// RegisterHandler binds a state to its update handler. Nil handlers are
// ignored so optional wiring stays a one-liner.
func RegisterHandler(st State, h tele.HandlerFunc) {
	if h == nil {
		return
	}
	fsmHandlers[st] = h
}
