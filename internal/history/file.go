package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/m3rciful/hotelbot/core/logger"
)

// document is the on-disk layout: user id -> timestamp -> record.
type document map[string]map[string]Record

// FileStore keeps every user's history in a single pretty-printed JSON file.
// Writes go to a temp file that is renamed over the original.
type FileStore struct {
	path  string
	limit int
	now   func() time.Time

	mu sync.Mutex
}

// NewFileStore returns a store backed by path. The file is created on first append.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, limit: Limit, now: time.Now}
}

// Append inserts rec under the current second. A key already taken is
// bumped forward one second at a time so no entry is overwritten.
func (s *FileStore) Append(ctx context.Context, userID int64, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	uid := strconv.FormatInt(userID, 10)
	log := doc[uid]
	if log == nil {
		log = make(map[string]Record)
		doc[uid] = log
	}

	at := s.now().Truncate(time.Second)
	key := at.Format(TimeLayout)
	for {
		if _, taken := log[key]; !taken {
			break
		}
		at = at.Add(time.Second)
		key = at.Format(TimeLayout)
	}

	evicted := evictOldest(log, s.limit-1)
	log[key] = rec

	if err := s.save(doc); err != nil {
		return err
	}
	logger.History.LogAttrs(ctx, slog.LevelDebug, "history.append",
		slog.String("backend", "file"),
		slog.Int64("user_id", userID),
		slog.String("key", key),
		slog.Int("evicted", evicted),
	)
	return nil
}

// List returns the user's entries oldest first.
func (s *FileStore) List(_ context.Context, userID int64) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	log := doc[strconv.FormatInt(userID, 10)]
	if len(log) == 0 {
		return nil, ErrEmpty
	}
	entries := make([]Entry, 0, len(log))
	for key, rec := range log {
		at, err := time.ParseInLocation(TimeLayout, key, time.Local)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{At: at, Record: rec})
	}
	if len(entries) == 0 {
		return nil, ErrEmpty
	}
	sortEntries(entries)
	return entries, nil
}

// evictOldest removes entries until at most keep remain, ordering keys by
// their parsed timestamp. Unparsable keys go first.
func evictOldest(log map[string]Record, keep int) int {
	if len(log) <= keep {
		return 0
	}
	type keyed struct {
		key string
		at  time.Time
		ok  bool
	}
	keys := make([]keyed, 0, len(log))
	for k := range log {
		at, err := time.ParseInLocation(TimeLayout, k, time.Local)
		keys = append(keys, keyed{key: k, at: at, ok: err == nil})
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ok != keys[j].ok {
			return !keys[i].ok
		}
		if !keys[i].at.Equal(keys[j].at) {
			return keys[i].at.Before(keys[j].at)
		}
		return keys[i].key < keys[j].key
	})
	n := len(log) - keep
	for _, k := range keys[:n] {
		delete(log, k.key)
	}
	return n
}

func (s *FileStore) load() (document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: read %s: %w", s.path, err)
	}
	doc := document{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("history: decode %s: %w", s.path, err)
	}
	return doc, nil
}

func (s *FileStore) save(doc document) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("history: create directory: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("history: encode: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("history: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("history: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("history: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("history: replace %s: %w", s.path, err)
	}
	return nil
}
