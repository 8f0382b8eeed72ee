package router

import (
	tg "github.com/m3rciful/hotelbot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// Conversation receives free-form replies while a user is inside a
// multi-step dialog.
type Conversation interface {
	InProgress(userID int64) bool
	HandleReply(c tele.Context) error
}

// TextOptions controls fallback behaviour for text/document updates.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// TextRoutes routes plain text in this order: an open conversation, a
// command typed with arguments or a bot suffix, the registry's text
// fallback, then opts.UnknownText. Documents go to an open conversation or
// opts.UnknownDocument.
func TextRoutes(conv Conversation, reg *tg.Registry, opts TextOptions) []tg.Route {
	inConversation := func(c tele.Context) bool {
		return conv != nil && c.Sender() != nil && conv.InProgress(c.Sender().ID)
	}

	text := func(c tele.Context) error {
		if inConversation(c) {
			return handled(c, "dialog", conv.HandleReply)
		}
		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil {
				return handled(c, handlerName(key), cmd.Handler)
			}
			if fb := reg.TextFallback(); fb != nil {
				return handled(c, "fallback", fb)
			}
		}
		return handled(c, "unknown_text", opts.UnknownText)
	}

	document := func(c tele.Context) error {
		if inConversation(c) {
			return handled(c, "dialog_document", conv.HandleReply)
		}
		return handled(c, "unexpected_document", opts.UnknownDocument)
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: text},
		{Endpoint: tele.OnDocument, Handler: document},
	}
}
