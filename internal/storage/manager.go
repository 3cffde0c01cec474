// Package storage answers questions about the client's local footprint:
// how much space the offline data uses, whether it is protected from
// platform eviction, and how to reclaim it.
package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/travellife/internal/cachestore"
	"github.com/dmitrijs2005/travellife/internal/common"
	"github.com/dmitrijs2005/travellife/internal/logging"
)

// Well-known names inside the data directory.
const (
	DatabaseFile = "travellife.db"
	TilesDir     = "tiles"

	persistMarker = ".persisted"
)

// cacheFiles are deleted by ClearAllCaches even when directory enumeration
// fails. SQLite side files are included so a half-cleared cache cannot
// resurrect itself.
var cacheFiles = []string{
	cachestore.FileName,
	cachestore.FileName + "-wal",
	cachestore.FileName + "-shm",
}

// Breakdown splits usage by consumer. Other is the residual.
type Breakdown struct {
	Records int64
	Cache   int64
	Tiles   int64
	Other   int64
}

// Info reports usage against the configured quota.
type Info struct {
	Usage       int64
	Quota       int64
	PercentUsed float64

	Persisted bool

	// SupportsDetailedBreakdown is false when the walk could not classify
	// usage; Breakdown is zero in that case.
	SupportsDetailedBreakdown bool
	Breakdown                 Breakdown
}

// Manager inspects and clears the data directory.
type Manager struct {
	dataDir       string
	quota         int64
	deleteTimeout time.Duration
	log           logging.Logger
}

// New builds a Manager. quota is the configured byte budget; zero means
// unknown. deleteTimeout bounds each deletion during ClearAllCaches; zero
// picks a default.
func New(dataDir string, quota int64, deleteTimeout time.Duration, log logging.Logger) *Manager {
	if deleteTimeout <= 0 {
		deleteTimeout = 10 * time.Second
	}
	return &Manager{
		dataDir:       dataDir,
		quota:         quota,
		deleteTimeout: deleteTimeout,
		log:           log.With("component", "storage"),
	}
}

// RequestPersistence asks the platform to protect the data directory from
// eviction. A false result means "evictable", not failure: callers keep
// working and the engine re-requests on the next start.
func (m *Manager) RequestPersistence(ctx context.Context) (bool, error) {
	if err := os.MkdirAll(m.dataDir, 0o755); err != nil {
		m.log.Warn(ctx, "persistence not granted", "error", err)
		return false, nil
	}
	marker := filepath.Join(m.dataDir, persistMarker)
	if err := os.WriteFile(marker, []byte(time.Now().UTC().Format(time.RFC3339)+"\n"), 0o644); err != nil {
		m.log.Warn(ctx, "persistence not granted", "error", err)
		return false, nil
	}
	return true, nil
}

// Persisted reports whether persistence was granted earlier.
func (m *Manager) Persisted() bool {
	_, err := os.Stat(filepath.Join(m.dataDir, persistMarker))
	return err == nil
}

// GetStorageInfo walks the data directory and classifies its usage.
func (m *Manager) GetStorageInfo(ctx context.Context) (*Info, error) {
	info := &Info{Quota: m.quota, Persisted: m.Persisted()}

	err := filepath.WalkDir(m.dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// a vanished file mid-walk is not worth failing over
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		size := fi.Size()
		info.Usage += size

		rel, err := filepath.Rel(m.dataDir, path)
		if err != nil {
			rel = d.Name()
		}
		switch {
		case strings.HasPrefix(rel, TilesDir+string(filepath.Separator)):
			info.Breakdown.Tiles += size
		case strings.HasPrefix(d.Name(), DatabaseFile):
			info.Breakdown.Records += size
		case strings.HasPrefix(d.Name(), cachestore.FileName):
			info.Breakdown.Cache += size
		default:
			info.Breakdown.Other += size
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			// nothing stored yet
			return info, nil
		}
		return nil, fmt.Errorf("walk data dir: %w", err)
	}

	info.SupportsDetailedBreakdown = true
	if m.quota > 0 {
		info.PercentUsed = float64(info.Usage) / float64(m.quota) * 100
	}
	return info, nil
}

// EnsureCapacity fails with common.ErrQuotaExceeded when the configured
// quota is already spent. Bulk downloads gate on it before writing. A zero
// quota disables the check.
func (m *Manager) EnsureCapacity(ctx context.Context) error {
	if m.quota <= 0 {
		return nil
	}
	used, err := m.usage(ctx)
	if err != nil {
		return err
	}
	if used >= m.quota {
		return fmt.Errorf("%d of %d bytes used: %w", used, m.quota, common.ErrQuotaExceeded)
	}
	return nil
}

// ClearAllCaches deletes the tile cache and the cache database, returning
// the bytes freed. The offline record database is never touched. Each
// deletion is bounded by the configured timeout; partial failure still
// reports what was freed.
func (m *Manager) ClearAllCaches(ctx context.Context) (int64, error) {
	before, err := m.usage(ctx)
	if err != nil {
		return 0, err
	}

	var firstErr error
	targets := append([]string{TilesDir}, cacheFiles...)
	for _, name := range targets {
		if err := m.removeWithTimeout(ctx, filepath.Join(m.dataDir, name)); err != nil {
			m.log.Warn(ctx, "cache deletion failed", "target", name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	after, err := m.usage(ctx)
	if err != nil {
		return 0, err
	}
	freed := before - after
	if freed < 0 {
		freed = 0
	}
	m.log.Info(ctx, "caches cleared", "freed_bytes", freed)
	return freed, firstErr
}

func (m *Manager) removeWithTimeout(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, m.deleteTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- os.RemoveAll(path) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) usage(ctx context.Context) (int64, error) {
	info, err := m.GetStorageInfo(ctx)
	if err != nil {
		return 0, err
	}
	return info.Usage, nil
}
