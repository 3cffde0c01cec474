package conflicts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/travellife/internal/models"
)

// Repository stores detected sync conflicts. At most one pending conflict
// exists per entity; the schema enforces it with a partial unique index.
type Repository interface {
	// Create inserts a pending conflict and returns its id. Inserting a
	// second pending conflict for the same entity fails.
	Create(ctx context.Context, c *models.SyncConflict) (int64, error)

	// GetByID returns one conflict, or common.ErrorNotFound.
	GetByID(ctx context.Context, id int64) (*models.SyncConflict, error)

	// PendingForEntity returns the pending conflict for an entity, or
	// common.ErrorNotFound.
	PendingForEntity(ctx context.Context, t models.EntityType, entityID string) (*models.SyncConflict, error)

	// ListPending returns every pending conflict, oldest first.
	ListPending(ctx context.Context) ([]*models.SyncConflict, error)

	// MarkResolved freezes a conflict with its resolution. Resolving an
	// already resolved conflict returns common.ErrConflictResolved.
	MarkResolved(ctx context.Context, id int64, res models.Resolution, at time.Time) error

	// CountPending returns the number of unresolved conflicts.
	CountPending(ctx context.Context) (int, error)
}
