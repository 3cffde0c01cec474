package searchindex

import (
	"context"

	"github.com/dmitrijs2005/travellife/internal/models"
)

// Repository stores the derived search projection. The index is a cache,
// never a source of truth: Clear followed by re-upserting from the record
// store is always a valid recovery path.
type Repository interface {
	// Upsert inserts or replaces one index entry.
	Upsert(ctx context.Context, e *models.SearchIndexEntry) error

	// DeleteByEntity removes the entry for one record.
	DeleteByEntity(ctx context.Context, t models.EntityType, entityID string) error

	// RewriteEntityID repoints an entry after identifier reconciliation.
	RewriteEntityID(ctx context.Context, t models.EntityType, localID, serverID string) error

	// RewriteTripID repoints the trip scope of entries after a trip's
	// identifier reconciliation.
	RewriteTripID(ctx context.Context, localID, serverID string) error

	// Search returns entries whose searchable text contains the query,
	// optionally scoped to a trip. Matching is case-insensitive substring.
	Search(ctx context.Context, tripID, query string) ([]models.SearchIndexEntry, error)

	// Clear drops the whole index.
	Clear(ctx context.Context) error
}
