// Package app assembles the hotel bot from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/hotelbot/core/bootstrap"
	"github.com/m3rciful/hotelbot/core/logger"
	tg "github.com/m3rciful/hotelbot/core/telegram"
	"github.com/m3rciful/hotelbot/core/telegram/sender"
	"github.com/m3rciful/hotelbot/internal/bot"
	"github.com/m3rciful/hotelbot/internal/config"
	"github.com/m3rciful/hotelbot/internal/dialog"
	"github.com/m3rciful/hotelbot/internal/history"
	"github.com/m3rciful/hotelbot/internal/hotelsapi"
	"github.com/m3rciful/hotelbot/internal/metrics"
	"github.com/m3rciful/hotelbot/internal/results"
)

// App holds the long-lived components of a running bot.
type App struct {
	cfg      *config.Config
	db       *sqlx.DB
	rdb      *redis.Client
	registry *tg.Registry
	disp     *sender.Dispatcher
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
}

// Bootstrap initializes logging and, for the postgres history backend, the
// database, then builds the App.
func Bootstrap(cfg *config.Config) (*App, error) {
	opts := bootstrap.Options{Config: cfg.CoreConfig()}
	if cfg.UsesPostgres() {
		db := cfg.Database
		opts.Database = &db
	}
	if cfg.Redis.Addr != "" {
		opts.Redis = &redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}
	}
	res, err := bootstrap.Run(opts)
	if err != nil {
		return nil, err
	}
	return New(cfg, *res), nil
}

// New builds an App on top of infra. infra.DB is required only for the
// postgres history backend; without infra.Redis locations are not cached.
func New(cfg *config.Config, infra bootstrap.Result) *App {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := metrics.New(reg)
	a := &App{
		cfg:      cfg,
		db:       infra.DB,
		rdb:      infra.Redis,
		registry: tg.NewRegistry(),
		disp:     sender.NewDispatcher(sender.Options{MaxRetries: 2, Observer: m}),
		metrics:  m,
		gatherer: reg,
	}
	return a
}

// HistoryStore returns the configured history backend.
func (a *App) HistoryStore() (history.Store, error) {
	if a.cfg.UsesPostgres() {
		if a.db == nil {
			return nil, errors.New("app: postgres history backend without database")
		}
		return history.NewSQLStore(a.db), nil
	}
	return history.NewFileStore(a.cfg.History.FilePath), nil
}

// APIClient returns the hotels API client, with the location cache when redis is configured.
func (a *App) APIClient() *hotelsapi.Client {
	api := a.cfg.HotelsAPI
	httpClient := tg.BuildHTTPClientWith(tg.HTTPClientOptions{
		Timeout:         api.Timeout,
		ResponseTimeout: api.Timeout,
		RetryAttempts:   api.Retries,
	})
	client := hotelsapi.NewClient(hotelsapi.Config{
		BaseURL:  api.BaseURL,
		Key:      api.Key,
		Host:     api.Host,
		Locale:   api.Locale,
		Currency: api.Currency,
	}, httpClient, a.metrics)
	if a.rdb != nil {
		client.WithCache(hotelsapi.NewRedisLocationCache(a.rdb, a.cfg.Redis.Prefix, a.cfg.Redis.TTL))
	}
	return client
}

// Engine wires the dialog engine to messenger and the configured backends.
func (a *App) Engine(messenger dialog.Messenger) (*dialog.Engine, error) {
	store, err := a.HistoryStore()
	if err != nil {
		return nil, err
	}
	client := a.APIClient()
	searcher := hotelsapi.NewSearcher(client, results.NewProcessor(client, a.cfg.HotelsAPI.PhotoSize), a.cfg.HotelsAPI.PageSize)
	return dialog.NewEngine(dialog.Deps{
		Messenger:      messenger,
		Locator:        client,
		Searcher:       searcher,
		History:        store,
		HistoryBackend: a.cfg.History.Backend,
		Metrics:        a.metrics,
	}), nil
}

// TelegramRunOptions builds the bot, its routes and lifecycle hooks.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	b, _, err := tg.BuildBot(a.cfg.CoreConfig())
	if err != nil {
		return tg.RunOptions{}, err
	}
	engine, err := a.Engine(bot.NewMessenger(b, a.disp))
	if err != nil {
		return tg.RunOptions{}, err
	}
	module, err := bot.New(engine, a.registry)
	if err != nil {
		return tg.RunOptions{}, err
	}

	opts := tg.RunOptions{
		Config:      a.cfg.CoreConfig(),
		Registry:    a.registry,
		Bot:         b,
		Dispatcher:  a.disp,
		Middlewares: tg.DefaultMiddlewares(a.metrics),
		Routes:      module.Routes(),
		OnStop:      a.onStop,
	}
	if a.cfg.Metrics.Listen != "" {
		opts.OnStart = a.serveMetrics
	}
	return opts, nil
}

func (a *App) serveMetrics(ctx context.Context, _ tg.Runtime) error {
	addr := a.cfg.Metrics.Listen
	go func() {
		if err := metrics.Serve(ctx, addr, a.gatherer); err != nil {
			logger.Error(ctx, "app", "metrics.serve_failed",
				slog.String("listen", addr),
				slog.String("err", err.Error()),
			)
		}
	}()
	logger.Info(ctx, "app", "metrics.listen", slog.String("listen", addr))
	return nil
}

func (a *App) onStop(context.Context, tg.Runtime) error {
	var errs []error
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("db close: %w", err))
		}
	}
	return errors.Join(errs...)
}
