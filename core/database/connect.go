package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/hotelbot/core/logger"
)

const (
	driverName     = "postgres"
	readyTimeout   = 30 * time.Second
	readyPoll      = 2 * time.Second
	connectTimeout = 5 * time.Second
	connMaxIdle    = 5 * time.Minute
)

// Connect waits for the server to accept connections, opens the pool and
// sizes it from cfg.
func Connect(cfg Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), readyTimeout)
	defer cancel()

	start := time.Now()
	if err := WaitForPostgres(ctx, cfg.URL()); err != nil {
		logger.DB.LogAttrs(ctx, slog.LevelError, "db not ready",
			slog.String("event", "db.connect"),
			slog.String("target", cfg.String()),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	connCtx, connCancel := context.WithTimeout(context.Background(), connectTimeout)
	defer connCancel()
	db, err := sqlx.ConnectContext(connCtx, driverName, cfg.URL())
	if err != nil {
		logger.DB.LogAttrs(ctx, slog.LevelError, "db connect failed",
			slog.String("event", "db.connect"),
			slog.String("target", cfg.String()),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)
	db.SetConnMaxIdleTime(connMaxIdle)

	logger.DB.LogAttrs(ctx, slog.LevelInfo, "db connected",
		slog.String("event", "db.connect"),
		slog.String("driver", driverName),
		slog.String("target", cfg.String()),
		slog.Int("pool_open", cfg.MaxConnections),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return db, nil
}

// WaitForPostgres pings dsn every few seconds until it answers or ctx ends.
func WaitForPostgres(ctx context.Context, dsn string) error {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ticker := time.NewTicker(readyPoll)
	defer ticker.Stop()
	for {
		err := db.PingContext(ctx)
		if err == nil {
			return nil
		}
		logger.DB.LogAttrs(ctx, slog.LevelDebug, "db not ready yet",
			slog.String("event", "db.wait"),
			slog.String("err", err.Error()),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for database: %w", err)
		case <-ticker.C:
		}
	}
}
