package idmap

import (
	"context"

	"github.com/dmitrijs2005/travellife/internal/models"
)

// Repository stores the append-only local-id → server-id mappings. Mappings
// are never deleted and at most one exists per local id.
type Repository interface {
	// Insert writes a mapping. A second mapping for the same local id fails.
	Insert(ctx context.Context, m *models.IdMapping) error

	// GetByLocalID returns the mapping, or common.ErrorNotFound.
	GetByLocalID(ctx context.Context, localID string) (*models.IdMapping, error)

	// ServerID resolves a local id to its server id, or returns the input
	// unchanged when no mapping exists (ids that were never local resolve
	// to themselves).
	ServerID(ctx context.Context, id string) (string, error)

	// All returns every mapping, oldest first.
	All(ctx context.Context) ([]models.IdMapping, error)
}
