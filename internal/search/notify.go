package search

import "context"

// Notifier delivers a side message to the user while a search runs,
// e.g. an apology for a hotel whose photos could not be fetched.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, text string)

func (f NotifierFunc) Notify(ctx context.Context, text string) { f(ctx, text) }

// Discard drops every notification.
var Discard Notifier = NotifierFunc(func(context.Context, string) {})
