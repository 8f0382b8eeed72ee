package telegram

import (
	"github.com/m3rciful/hotelbot/core/telegram/middleware"
)

// DefaultMiddlewares returns the global chain: panic recovery, the update
// receipt log and message metrics reported to obs (which may be nil).
func DefaultMiddlewares(obs middleware.UpdateObserver) []Middleware {
	return []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "logger", Use: middleware.LoggerMiddleware},
		{Name: "metrics", Use: middleware.MessageMetrics(obs)},
	}
}
