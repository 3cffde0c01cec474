// Package syncengine is the heart of the offline-first client: an outbox of
// pending mutations replayed to the server in per-lineage order, optimistic
// concurrency with explicit conflicts, and transactional reconciliation of
// locally generated identifiers.
package syncengine

import (
	"context"
	"database/sql"
	"encoding/json"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/travellife/internal/logging"
	"github.com/dmitrijs2005/travellife/internal/models"
	"github.com/dmitrijs2005/travellife/internal/repositories/conflicts"
	"github.com/dmitrijs2005/travellife/internal/repositories/idmap"
	"github.com/dmitrijs2005/travellife/internal/repositories/outbox"
	"github.com/dmitrijs2005/travellife/internal/repositories/records"
	"github.com/dmitrijs2005/travellife/internal/repositories/searchindex"
	"github.com/dmitrijs2005/travellife/internal/serverapi"
)

// Config tunes the drain loop.
type Config struct {
	// MaxRetries is the per-operation retry budget for transient failures.
	MaxRetries int

	// BackoffBase and BackoffCap bound the exponential retry backoff.
	BackoffBase time.Duration
	BackoffCap  time.Duration

	// Parallelism caps how many entity lineages are drained concurrently.
	// Operations within one lineage are always sequential.
	Parallelism int
}

// DefaultConfig returns the tuning used when the caller has no opinion.
func DefaultConfig() Config {
	return Config{
		MaxRetries:  5,
		BackoffBase: 2 * time.Second,
		BackoffCap:  5 * time.Minute,
		Parallelism: 4,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = d.BackoffBase
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = d.BackoffCap
	}
	if c.Parallelism <= 0 {
		c.Parallelism = d.Parallelism
	}
	return c
}

// Engine owns the local record store, the mutation outbox and the replay
// loop. All methods are safe for concurrent use.
type Engine struct {
	db  *sql.DB
	api serverapi.Client
	log logging.Logger
	cfg Config

	records   records.Repository
	outbox    outbox.Repository
	conflicts conflicts.Repository
	idmap     idmap.Repository
	search    searchindex.Repository

	now func() time.Time

	draining atomic.Bool
	online   atomic.Bool

	mu           gosync.Mutex
	lastSyncTime time.Time
	lastError    string
}

// New builds an Engine over an opened (and migrated) client database.
func New(db *sql.DB, api serverapi.Client, log logging.Logger, cfg Config) *Engine {
	e := &Engine{
		db:        db,
		api:       api,
		log:       log.With("component", "syncengine"),
		cfg:       cfg.withDefaults(),
		records:   records.NewSQLiteRepository(db),
		outbox:    outbox.NewSQLiteRepository(db),
		conflicts: conflicts.NewSQLiteRepository(db),
		idmap:     idmap.NewSQLiteRepository(db),
		search:    searchindex.NewSQLiteRepository(db),
		now:       time.Now,
	}
	e.online.Store(true)
	return e
}

// SetOnline records the connectivity state reported by the prober. It only
// affects status reporting; Drain itself discovers unreachability through
// transient errors.
func (e *Engine) SetOnline(online bool) {
	e.online.Store(online)
}

// Online reports the last known connectivity state.
func (e *Engine) Online() bool {
	return e.online.Load()
}

// Status answers "is my data safe yet?": counts of pending, blocked and
// failed work plus a single summary state.
func (e *Engine) Status(ctx context.Context) (*models.SyncStatus, error) {
	queued, blocked, failed, err := e.outbox.Counts(ctx)
	if err != nil {
		return nil, err
	}
	pendingConflicts, err := e.conflicts.CountPending(ctx)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	lastSync, lastError := e.lastSyncTime, e.lastError
	e.mu.Unlock()

	st := models.StatusSynced
	switch {
	case !e.online.Load():
		st = models.StatusOffline
	case e.draining.Load():
		st = models.StatusSyncing
	case failed > 0:
		st = models.StatusError
	case queued+blocked > 0:
		st = models.StatusPending
	}

	return &models.SyncStatus{
		PendingCount:  queued + blocked,
		ConflictCount: pendingConflicts,
		FailedCount:   failed,
		Status:        st,
		LastSyncTime:  lastSync,
		LastError:     lastError,
	}, nil
}

// Record returns the local copy of one entity.
func (e *Engine) Record(ctx context.Context, t models.EntityType, id string) (*models.OfflineRecord, error) {
	return e.records.GetByID(ctx, t, id)
}

// TripRecords returns every local record scoped to one trip.
func (e *Engine) TripRecords(ctx context.Context, tripID string) ([]models.OfflineRecord, error) {
	return e.records.GetByTrip(ctx, tripID)
}

// RecordsOfType returns every local record of one entity type.
func (e *Engine) RecordsOfType(ctx context.Context, t models.EntityType) ([]models.OfflineRecord, error) {
	return e.records.GetAllOfType(ctx, t)
}

// PendingConflicts lists unresolved conflicts, oldest first.
func (e *Engine) PendingConflicts(ctx context.Context) ([]*models.SyncConflict, error) {
	return e.conflicts.ListPending(ctx)
}

// FailedOperations lists operations whose retry budget is exhausted.
func (e *Engine) FailedOperations(ctx context.Context) ([]*models.SyncOperation, error) {
	return e.outbox.Failed(ctx)
}

// RetryFailed puts one failed operation back in rotation without changing
// its payload or base version.
func (e *Engine) RetryFailed(ctx context.Context, opID int64) error {
	op, err := e.outbox.Get(ctx, opID)
	if err != nil {
		return err
	}
	return e.outbox.Requeue(ctx, op.ID, op.BaseVersion, op.Force)
}

func (e *Engine) setLastError(msg string) {
	e.mu.Lock()
	e.lastError = msg
	e.mu.Unlock()
}

// engineState is the warm-start snapshot kept in the cache store. Losing it
// costs nothing but a blank "last sync" on the next start.
type engineState struct {
	LastSyncTime time.Time `json:"lastSyncTime"`
	LastError    string    `json:"lastError"`
}

// ExportState serializes the in-memory sync state for persistence across
// restarts.
func (e *Engine) ExportState() []byte {
	e.mu.Lock()
	s := engineState{LastSyncTime: e.lastSyncTime, LastError: e.lastError}
	e.mu.Unlock()

	raw, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	return raw
}

// ImportState restores a snapshot produced by ExportState. Empty or
// malformed input leaves the engine untouched.
func (e *Engine) ImportState(raw []byte) {
	var s engineState
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return
	}
	e.mu.Lock()
	e.lastSyncTime = s.LastSyncTime
	e.lastError = s.LastError
	e.mu.Unlock()
}
