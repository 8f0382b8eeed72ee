// Package logger is the bot's structured logging layer: slog with a flat
// kv or JSON handler, an async writer fanning out to stdout and optional
// files, per-component loggers and context helpers that carry the update's
// rid, user and chat.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/m3rciful/hotelbot/core/buildinfo"
	coreconfig "github.com/m3rciful/hotelbot/core/config"
)

const defaultProfile = "prod"

var (
	initOnce     sync.Once
	shutdownOnce sync.Once

	logWriter  *asyncWriter
	logClosers []io.Closer

	levelVar slog.LevelVar

	debugSampler  = newRatioSampler(1, 50)
	traceOverride bool

	// L is the base logger; component loggers below derive from it.
	L *slog.Logger

	// DB logs database connection events.
	DB *slog.Logger
	// TG logs Telegram transport events.
	TG *slog.Logger
	// MIG logs database migration events.
	MIG *slog.Logger
	// TWire logs Telegram wiring steps.
	TWire *slog.Logger
	// API logs hotels API requests.
	API *slog.Logger
	// Dialog logs conversation state transitions.
	Dialog *slog.Logger
	// Search logs search execution and result shaping.
	Search *slog.Logger
	// History logs search history persistence.
	History *slog.Logger
	// Cache logs location cache activity.
	Cache *slog.Logger
)

func init() {
	// Component loggers discard output until InitLogger runs.
	L = slog.New(slog.DiscardHandler)
	wireComponents()
}

// settings is the logging section resolved against its defaults.
type settings struct {
	profile  string
	format   logFormat
	level    slog.Level
	keyOrder []string
	// sampleNum/sampleDen is the share of sampled debug events kept;
	// 0/0 keeps all of them.
	sampleNum, sampleDen int
}

func resolve(cfg coreconfig.LoggingConfig) settings {
	s := settings{
		profile:   strings.ToLower(strings.TrimSpace(cfg.Profile)),
		format:    formatJSON,
		level:     slog.LevelInfo,
		keyOrder:  slices.Clone(defaultKeyOrder),
		sampleNum: 1,
		sampleDen: 50,
	}
	if s.profile == "" {
		s.profile = defaultProfile
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "kv", "text", "pretty":
		s.format = formatKV
	case "json":
	default:
		if s.profile == "debug" || s.profile == "dev" {
			s.format = formatKV
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Level)) {
	case "debug":
		s.level = slog.LevelDebug
	case "warn", "warning":
		s.level = slog.LevelWarn
	case "error":
		s.level = slog.LevelError
	}

	if order := splitKeys(cfg.KeysOrder); len(order) > 0 {
		s.keyOrder = order
	}

	switch spec := strings.ToLower(strings.TrimSpace(cfg.DebugSample)); spec {
	case "":
	case "off", "all":
		s.sampleNum, s.sampleDen = 0, 0
	default:
		if num, den := parseRatioSpec(spec); num > 0 && den > 0 {
			s.sampleNum, s.sampleDen = num, den
		}
	}
	return s
}

// splitKeys parses a comma-separated key list; "default" means none.
func splitKeys(raw string) []string {
	if strings.TrimSpace(raw) == "default" {
		return nil
	}
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// InitLogger installs the structured handler as slog's default and
// rebuilds the component loggers. Calls after the first are no-ops.
func InitLogger(cfg *coreconfig.Config) error {
	initOnce.Do(func() {
		var logging coreconfig.LoggingConfig
		if cfg != nil {
			logging = cfg.Logging
		}
		s := resolve(logging)
		levelVar.Set(s.level)
		debugSampler.Set(s.sampleNum, s.sampleDen)
		traceOverride = isTruthy(os.Getenv("TRACE")) || isTruthy(os.Getenv("LOG_TRACE"))

		outputs, closers := buildOutputs(logging)
		logClosers = closers
		logWriter = newAsyncWriter(outputs, defaultBufSize)

		L = slog.New(newStructuredHandler(handlerConfig{
			level:    &levelVar,
			writer:   logWriter,
			format:   s.format,
			keyOrder: s.keyOrder,
		}))
		slog.SetDefault(L)
		wireComponents()
		logStartup(s)
	})
	return nil
}

func wireComponents() {
	DB = L.With("component", "db")
	TG = L.With("component", "tg")
	MIG = L.With("component", "db.migrate")
	TWire = L.With("component", "tg.wire")
	API = L.With("component", "hotels.api")
	Dialog = L.With("component", "dialog")
	Search = L.With("component", "search")
	History = L.With("component", "history")
	Cache = L.With("component", "hotels.cache")
}

func logStartup(s settings) {
	build := buildinfo.Get()
	L.LogAttrs(context.Background(), slog.LevelInfo, "startup",
		slog.String("component", "app"),
		slog.String("event", "startup"),
		slog.String("go_version", runtime.Version()),
		slog.String("build_version", build.Version),
		slog.String("build_commit", build.Commit),
		slog.String("build_time", build.Date),
		slog.Bool("build_dirty", build.Modified),
		slog.String("cfg_profile", s.profile),
		slog.String("level", s.level.String()),
	)
}

// Shutdown flushes buffered log output and closes opened sinks. Only the
// first call does any work.
func Shutdown() error {
	var err error
	shutdownOnce.Do(func() {
		var errs []error
		if logWriter != nil {
			errs = append(errs, logWriter.Flush(), logWriter.Close())
		}
		for _, c := range logClosers {
			errs = append(errs, c.Close())
		}
		err = errors.Join(errs...)
	})
	return err
}

// buildOutputs returns stdout plus the optional bot and errors files under
// logging.dir. A file that cannot be opened is reported on stderr and skipped.
func buildOutputs(cfg coreconfig.LoggingConfig) ([]output, []io.Closer) {
	outputs := []output{{w: os.Stdout}}
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		return outputs, nil
	}
	var closers []io.Closer
	for _, f := range []struct {
		name         string
		problemsOnly bool
	}{
		{strings.TrimSpace(cfg.BotFile), false},
		{strings.TrimSpace(cfg.ErrorsFile), true},
	} {
		if f.name == "" {
			continue
		}
		file, err := openLogFile(dir, f.name)
		if err != nil {
			log.Printf("logger: %v", err)
			continue
		}
		outputs = append(outputs, output{w: file, problemsOnly: f.problemsOnly})
		closers = append(closers, file)
	}
	return outputs, closers
}

func openLogFile(dir, name string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return f, nil
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// ShouldSampleDebug reports whether the next high-volume debug event should
// be logged. TRACE=1 in the environment keeps every event.
func ShouldSampleDebug() bool {
	return traceOverride || debugSampler.Allow()
}

// LogEvent writes attrs with an "event" attribute through logg, or through
// the context's logger when logg is nil.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component returns L tagged with component; blank names return L.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

// Event logs event at level under component.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	if !L.Enabled(ctx, level) {
		return
	}
	LogEvent(ctx, Component(component), level, event, attrs...)
}

// Debug logs a debug-level event for the given component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

// Info logs an info-level event for the given component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

// Warn logs a warn-level event for the given component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

// Error logs an error-level event for the given component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}
