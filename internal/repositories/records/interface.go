package records

import (
	"context"
	"time"

	"github.com/dmitrijs2005/travellife/internal/models"
)

// Repository stores the keyed, versioned local copies of every domain
// entity. Implementations are typically backed by a local SQLite database.
type Repository interface {
	// Upsert inserts or replaces a record by (entity type, id).
	Upsert(ctx context.Context, rec *models.OfflineRecord) error

	// GetByID returns a record, or common.ErrorNotFound.
	GetByID(ctx context.Context, t models.EntityType, id string) (*models.OfflineRecord, error)

	// GetByTrip returns every record scoped to a trip.
	GetByTrip(ctx context.Context, tripID string) ([]models.OfflineRecord, error)

	// GetAllOfType returns every record of one entity type.
	GetAllOfType(ctx context.Context, t models.EntityType) ([]models.OfflineRecord, error)

	// All returns every record of every type.
	All(ctx context.Context) ([]models.OfflineRecord, error)

	// Delete removes a record. Deleting an absent record is not an error.
	Delete(ctx context.Context, t models.EntityType, id string) error

	// RewriteID changes a record's canonical id from localID to serverID,
	// retaining localID in the local_id column for audit.
	RewriteID(ctx context.Context, t models.EntityType, localID, serverID string) error

	// RewriteTripID repoints the trip scope of every record from localID to
	// serverID after a trip's identifier reconciliation.
	RewriteTripID(ctx context.Context, localID, serverID string) error

	// UpdateData replaces the payload of an existing record and bumps its
	// version by one.
	UpdateData(ctx context.Context, t models.EntityType, id string, data []byte) error

	// MarkSynced records the server-confirmed version and sync time.
	MarkSynced(ctx context.Context, t models.EntityType, id string, version int64, at time.Time) error
}
