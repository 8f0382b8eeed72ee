package router

import (
	"log/slog"

	tg "github.com/m3rciful/hotelbot/core/telegram"
	"github.com/m3rciful/hotelbot/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	// NotFound handles callbacks whose key is not registered; nil ignores them.
	NotFound tele.HandlerFunc
}

// CallbackRoute dispatches inline button presses by the key encoded in the
// callback data ("\f<key>|<payload>"). Every press is answered so the
// client stops its spinner.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		key, _ := callbacks.Split(cb)
		name := "callback." + handlerName(key)
		_ = c.Respond()

		h, ok := reg.GetCallback(key)
		if !ok || h == nil {
			return handled(c, name, opts.NotFound,
				slog.String("cb_key", key), slog.String("reason", "not_found"))
		}
		return handled(c, name, h, slog.String("cb_key", key))
	}
	return tg.Route{Endpoint: tele.OnCallback, Handler: handler}
}
