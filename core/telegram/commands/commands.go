package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command is a slash command: its handler and the description shown in the
// Telegram menu and in /help.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// Hidden commands still work but are left out of the menu.
	Hidden bool
}
