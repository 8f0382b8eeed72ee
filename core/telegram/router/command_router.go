package router

import (
	"log/slog"

	"github.com/m3rciful/hotelbot/core/logger"
	tg "github.com/m3rciful/hotelbot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// CommandRoutes binds every registered command to its endpoint. Recovery and
// receipt logging come from the bot's global middleware chain.
func CommandRoutes(reg *tg.Registry) []tg.Route {
	if reg == nil {
		return nil
	}
	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for endpoint, def := range cmds {
		name, h := handlerName(endpoint), def.Handler
		routes = append(routes, tg.Route{
			Endpoint: endpoint,
			Handler:  func(c tele.Context) error { return handled(c, name, h) },
		})
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(cmds)),
		slog.Int("callbacks", len(reg.CallbackKeys())),
	)
	return routes
}
