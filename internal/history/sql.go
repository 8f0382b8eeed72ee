package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/hotelbot/core/logger"
)

const (
	lockUserSQL   = `SELECT pg_advisory_xact_lock($1)`
	insertSQL     = `INSERT INTO search_history (id, user_id, searched_at, record) VALUES ($1, $2, $3, $4)`
	evictSQL      = `DELETE FROM search_history WHERE user_id = $1 AND id NOT IN (SELECT id FROM search_history WHERE user_id = $1 ORDER BY searched_at DESC, id DESC LIMIT $2)`
	listByUserSQL = `SELECT searched_at, record FROM search_history WHERE user_id = $1 ORDER BY searched_at ASC, id ASC`
)

// SQLStore keeps history rows in Postgres. Appends for one user are
// serialized by a transaction-scoped advisory lock.
type SQLStore struct {
	db    *sqlx.DB
	limit int
	now   func() time.Time
}

// NewSQLStore wraps an open connection; the search_history table comes from migrations.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, limit: Limit, now: time.Now}
}

type historyRow struct {
	SearchedAt time.Time `db:"searched_at"`
	Record     []byte    `db:"record"`
}

func (s *SQLStore) Append(ctx context.Context, userID int64, rec Record) (err error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("history: encode record: %w", err)
	}
	id, parseErr := uuid.Parse(rec.SearchID)
	if parseErr != nil {
		id = uuid.New()
	}
	at := s.now().Truncate(time.Second)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, lockUserSQL, userID); err != nil {
		return fmt.Errorf("history: lock user: %w", err)
	}
	if _, err = tx.ExecContext(ctx, insertSQL, id.String(), userID, at, payload); err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	res, err := tx.ExecContext(ctx, evictSQL, userID, s.limit)
	if err != nil {
		return fmt.Errorf("history: evict: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("history: commit: %w", err)
	}

	evicted, _ := res.RowsAffected()
	logger.History.LogAttrs(ctx, slog.LevelDebug, "history.append",
		slog.String("backend", "postgres"),
		slog.Int64("user_id", userID),
		slog.String("search_id", id.String()),
		slog.Int64("evicted", evicted),
	)
	return nil
}

func (s *SQLStore) List(ctx context.Context, userID int64) ([]Entry, error) {
	var rows []historyRow
	if err := s.db.SelectContext(ctx, &rows, listByUserSQL, userID); err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrEmpty
	}
	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		var rec Record
		if err := json.Unmarshal(r.Record, &rec); err != nil {
			return nil, fmt.Errorf("history: decode record: %w", err)
		}
		entries = append(entries, Entry{At: r.SearchedAt.Local(), Record: rec})
	}
	return entries, nil
}
