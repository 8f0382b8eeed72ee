package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/hotelbot/core/logger"
	"github.com/m3rciful/hotelbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher installs the dispatcher used by the send helpers; nil makes
// them call Telegram directly.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

// send runs the call through the dispatcher on the handler's goroutine so
// replies keep their order. A closed dispatcher falls back to a direct call.
func send(c tele.Context, action, endpoint string, run func() error) error {
	d := globalDispatcher.Load()
	if d == nil {
		return run()
	}
	ctx := BuildContext(c)
	err := d.Do(ctx, action, endpoint, run)
	if errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "dispatcher.closed",
			slog.String("action", action),
			slog.String("endpoint", endpoint),
		)
		return run()
	}
	return err
}

// SendText sends plain text (no parse mode) to the update's chat.
func SendText(c tele.Context, text string, opts ...interface{}) error {
	return send(c, "send.text", "sendMessage", func() error {
		return c.Send(text, opts...)
	})
}
