// Package callbacks decodes inline button data. A button built with
// markup.Data(text, unique, data) arrives as "\f<unique>|<data>" unless
// telebot already matched a "\f<unique>" handler and split it.
package callbacks

import (
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Split returns the unique key and the payload of cb; either may be empty.
func Split(cb *tele.Callback) (key, payload string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	key, payload, _ = strings.Cut(strings.TrimPrefix(cb.Data, "\f"), "|")
	return strings.TrimSpace(key), payload
}

// Payload returns the payload of the update's callback.
func Payload(c tele.Context) string {
	_, payload := Split(c.Callback())
	return payload
}

// PayloadInt parses the callback payload as a decimal int.
func PayloadInt(c tele.Context) (int, error) {
	return strconv.Atoi(strings.TrimSpace(Payload(c)))
}
