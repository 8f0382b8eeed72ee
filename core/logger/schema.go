package logger

import (
	"log/slog"
	"strings"
)

// enum is a closed set of lowercase values for a log field.
type enum map[string]struct{}

func newEnum(values ...string) enum {
	e := make(enum, len(values))
	for _, v := range values {
		e[v] = struct{}{}
	}
	return e
}

// normalize lowercases v and reports whether it belongs to e.
func (e enum) normalize(v string) (string, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	_, ok := e[v]
	return v, ok
}

var (
	statusValues  = newEnum("ok", "fail", "skip", "retry", "cancelled")
	cacheValues   = newEnum("hit", "miss", "store", "error")
	outcomeValues = newEnum("ok", "fail", "empty", "cancelled")
)

// levelName maps a record level onto DEBUG, INFO, WARN or ERROR; levels
// between the named ones round down.
func levelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN"
	case l >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}

// defaultKeyOrder lists the keys rendered first, in this order; any other
// key follows alphabetically.
var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",
	"operation",
	"op",
	"cb_key",
	"outcome",
	"duration_ms",
	"messages",
	"kb",
	"count",
	"page",
	"pages",
	"cache",
	"payload",
	"mode",
	"listen",
	"public_url",
	"http_code",
	"db",
	"host",
	"port",
	"search_id",
	"command",
	"state",
	"next_state",
	"city",
	"destination_id",
	"endpoint",
	"hotels",
	"backend",
	"err",
	"err_code",
	"cause",
	"retryable",
	"attempts",
	"backoff_ms",
}
