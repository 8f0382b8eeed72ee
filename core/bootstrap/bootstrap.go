// Package bootstrap brings up the process-wide infrastructure in order:
// logging, then the optional postgres database (connect and migrate), then
// the optional redis cache.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	coreconfig "github.com/m3rciful/hotelbot/core/config"
	coredatabase "github.com/m3rciful/hotelbot/core/database"
	"github.com/m3rciful/hotelbot/core/logger"
)

const redisPingTimeout = 3 * time.Second

// Options select what to bring up. The function fields default to the
// real implementations and exist for tests.
type Options struct {
	Config *coreconfig.Config
	// Database is optional; without it no connection is opened.
	Database *coredatabase.Config
	// Redis is optional; an unreachable server disables the cache instead
	// of failing startup.
	Redis *redis.Options

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

// Result holds the infrastructure that came up; absent parts are nil.
type Result struct {
	DB    *sqlx.DB
	Redis *redis.Client
}

// Run initializes the logger, then the database and redis when requested.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}
	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	res := &Result{}
	if opts.Database != nil {
		db, err := openDatabase(opts)
		if err != nil {
			return nil, err
		}
		res.DB = db
	}
	if opts.Redis != nil {
		res.Redis = OpenRedis(context.Background(), opts.Redis)
	}
	return res, nil
}

func openDatabase(opts Options) (*sqlx.DB, error) {
	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}

	db, err := connect(*opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	if err := migrate(*opts.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}
	return db, nil
}

// OpenRedis connects and pings redis. It returns nil, after logging a
// warning, when the server does not answer.
func OpenRedis(ctx context.Context, opts *redis.Options) *redis.Client {
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn(ctx, "cache", "redis.unavailable",
			slog.String("addr", opts.Addr),
			slog.String("err", err.Error()),
		)
		_ = rdb.Close()
		return nil
	}
	logger.Info(ctx, "cache", "redis.connected", slog.String("addr", opts.Addr))
	return rdb
}
