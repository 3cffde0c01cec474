package drafts

import (
	"context"

	"github.com/dmitrijs2005/travellife/internal/models"
)

// Repository stores ephemeral form drafts so in-progress user input
// survives a restart. Drafts never take part in sync or conflict detection.
type Repository interface {
	// Save upserts a draft by id, refreshing UpdatedAt.
	Save(ctx context.Context, d *models.LocalDraft) error

	// GetByID returns a draft, or common.ErrorNotFound.
	GetByID(ctx context.Context, id string) (*models.LocalDraft, error)

	// ListByTrip returns drafts scoped to a trip, most recently updated first.
	ListByTrip(ctx context.Context, tripID string) ([]models.LocalDraft, error)

	// Delete removes a draft. Deleting an absent draft is not an error.
	Delete(ctx context.Context, id string) error
}
