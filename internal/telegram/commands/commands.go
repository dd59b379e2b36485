// Package commands defines the command metadata consumed by the
// registry and the command router.
package commands

import tele "gopkg.in/telebot.v4"

// Command binds a handler to a slash command.
type Command struct {
	Handler tele.HandlerFunc

	// Description is shown in the Telegram command menu.
	Description string

	// AdminOnly commands are wrapped with the admin access middleware
	// and hidden from the public command menu.
	AdminOnly bool

	// Hidden commands work but are not published to the menu.
	Hidden bool

	// Aliases are extra endpoints routed to the same handler.
	Aliases []string
}
