// Package cachestore persists the UI's query-cache snapshot in a second,
// throwaway SQLite database (travel-life-cache.db). Losing it costs a warm
// start, never data, so the engine-facing helpers log failures instead of
// propagating them.
package cachestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dmitrijs2005/travellife/internal/common"
	"github.com/dmitrijs2005/travellife/internal/logging"

	_ "modernc.org/sqlite"
)

// FileName is the cache database file name inside the data directory.
const FileName = "travel-life-cache.db"

const clientKey = "queryClient"

const schema = `CREATE TABLE IF NOT EXISTS metadata (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

// Store owns the cache database handle. The handle is opened on first use;
// concurrent first callers share a single open attempt. After Shutdown or a
// write failure the handle is dropped and the next call re-opens it.
type Store struct {
	path string
	log  logging.Logger

	mu      sync.Mutex
	db      *sql.DB
	opening chan struct{}
}

// New builds a Store for dataDir. Nothing is opened yet.
func New(dataDir string, log logging.Logger) *Store {
	return &Store{
		path: filepath.Join(dataDir, FileName),
		log:  log.With("component", "cachestore"),
	}
}

// conn returns the shared handle, opening it if necessary. Exactly one
// goroutine performs the open; the rest wait for it.
func (s *Store) conn(ctx context.Context) (*sql.DB, error) {
	for {
		s.mu.Lock()
		if s.db != nil {
			db := s.db
			s.mu.Unlock()
			return db, nil
		}
		if s.opening != nil {
			ch := s.opening
			s.mu.Unlock()
			select {
			case <-ch:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		ch := make(chan struct{})
		s.opening = ch
		s.mu.Unlock()

		db, err := s.open(ctx)

		s.mu.Lock()
		s.opening = nil
		close(ch)
		if err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("open cache store: %w", errors.Join(common.ErrUnavailable, err))
		}
		s.db = db
		s.mu.Unlock()
		return db, nil
	}
}

func (s *Store) open(ctx context.Context) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// invalidate drops a handle that returned an error so the next call
// re-opens. The failed handle is closed best-effort.
func (s *Store) invalidate(db *sql.DB) {
	s.mu.Lock()
	if s.db == db {
		s.db = nil
	}
	s.mu.Unlock()
	_ = db.Close()
}

// Shutdown closes the handle and clears the singleton. Safe to call when
// nothing was ever opened.
func (s *Store) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	db := s.db
	s.db = nil
	s.mu.Unlock()
	if db == nil {
		return nil
	}
	return db.Close()
}

// PersistClient stores the serialized query-cache snapshot.
func (s *Store) PersistClient(ctx context.Context, state []byte) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		clientKey, state, time.Now().UTC())
	if err != nil {
		s.invalidate(db)
		return fmt.Errorf("persist client state: %w", err)
	}
	return nil
}

// RestoreClient returns the last stored snapshot, or common.ErrorNotFound.
func (s *Store) RestoreClient(ctx context.Context) ([]byte, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var value []byte
	err = db.QueryRowContext(ctx,
		`select value from metadata where key=?`, clientKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		s.invalidate(db)
		return nil, fmt.Errorf("restore client state: %w", err)
	}
	return value, nil
}

// RemoveClient deletes the stored snapshot. Removing an absent snapshot is
// not an error.
func (s *Store) RemoveClient(ctx context.Context) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx,
		`delete from metadata where key=?`, clientKey); err != nil {
		s.invalidate(db)
		return fmt.Errorf("remove client state: %w", err)
	}
	return nil
}

// TryPersist is the engine-facing wrapper: cache persistence must never take
// the app down, so failures are logged and swallowed.
func (s *Store) TryPersist(ctx context.Context, state []byte) {
	if err := s.PersistClient(ctx, state); err != nil {
		s.log.Warn(ctx, "failed to persist client cache", "error", err)
	}
}

// TryRestore returns the snapshot or nil, logging any failure.
func (s *Store) TryRestore(ctx context.Context) []byte {
	state, err := s.RestoreClient(ctx)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			s.log.Warn(ctx, "failed to restore client cache", "error", err)
		}
		return nil
	}
	return state
}

// TryRemove deletes the snapshot, logging any failure.
func (s *Store) TryRemove(ctx context.Context) {
	if err := s.RemoveClient(ctx); err != nil {
		s.log.Warn(ctx, "failed to remove client cache", "error", err)
	}
}
