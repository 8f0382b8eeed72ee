package middleware

import (
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

const (
	keyMessages = "messages"
	keyKeyboard = "kb"
)

// UpdateObserver receives one observation per handled update.
type UpdateObserver interface {
	ObserveUpdate(kind, status string, took time.Duration)
}

// countingContext counts replies sent through the handler's context and
// whether any of them carried a keyboard.
type countingContext struct{ tele.Context }

func (m countingContext) count(opts []interface{}) {
	n, _ := m.Get(keyMessages).(int)
	m.Set(keyMessages, n+1)
	if hasKeyboard(opts) {
		m.Set(keyKeyboard, true)
	}
}

func hasKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

func (m countingContext) Send(what interface{}, opts ...interface{}) error {
	err := m.Context.Send(what, opts...)
	if err == nil {
		m.count(opts)
	}
	return err
}

func (m countingContext) Reply(what interface{}, opts ...interface{}) error {
	err := m.Context.Reply(what, opts...)
	if err == nil {
		m.count(opts)
	}
	return err
}

func (m countingContext) EditOrSend(what interface{}, opts ...interface{}) error {
	err := m.Context.EditOrSend(what, opts...)
	if err == nil {
		m.count(opts)
	}
	return err
}

// MessageMetrics counts context replies for the handler summary log and,
// when obs is set, reports the update kind, status and handling time.
func MessageMetrics(obs UpdateObserver) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			c.Set(keyMessages, 0)
			c.Set(keyKeyboard, false)
			start := time.Now()
			err := next(countingContext{Context: c})
			if obs != nil {
				status := "ok"
				if err != nil {
					status = "fail"
				}
				obs.ObserveUpdate(UpdateKind(c), status, time.Since(start))
			}
			return err
		}
	}
}

// UpdateKind classifies an update as callback, command, document, text or other.
func UpdateKind(c tele.Context) string {
	if c.Callback() != nil {
		return "callback"
	}
	msg := c.Message()
	switch {
	case msg == nil:
		return "other"
	case strings.HasPrefix(msg.Text, "/"):
		return "command"
	case msg.Document != nil:
		return "document"
	case msg.Text != "":
		return "text"
	}
	return "other"
}

// GetCounters returns the number of replies and whether one had a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	msgs, _ := c.Get(keyMessages).(int)
	kb, _ := c.Get(keyKeyboard).(bool)
	return msgs, kb
}
