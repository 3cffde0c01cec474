package syncengine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/travellife/internal/models"
	"github.com/dmitrijs2005/travellife/internal/repositories/drafts"
)

// draftStore is constructed lazily so the engine does not pay for drafts
// unless the UI uses them.
func (e *Engine) draftStore() drafts.Repository {
	return drafts.NewSQLiteRepository(e.db)
}

// SaveDraft persists in-progress form state. A draft with no id gets one.
func (e *Engine) SaveDraft(ctx context.Context, d *models.LocalDraft) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return e.draftStore().Save(ctx, d)
}

// TripDrafts lists a trip's drafts, most recently updated first.
func (e *Engine) TripDrafts(ctx context.Context, tripID string) ([]models.LocalDraft, error) {
	return e.draftStore().ListByTrip(ctx, tripID)
}

// DiscardDraft removes a draft without touching any entity.
func (e *Engine) DiscardDraft(ctx context.Context, id string) error {
	return e.draftStore().Delete(ctx, id)
}

// PromoteDraft turns a draft into a real mutation: a create when the draft
// has no entity id, an update otherwise. The draft is removed on success.
func (e *Engine) PromoteDraft(ctx context.Context, id string) (string, error) {
	ds := e.draftStore()
	d, err := ds.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	p, err := models.DecodePayload(d.EntityType, d.Data)
	if err != nil {
		return "", fmt.Errorf("promote draft %s: %w", id, err)
	}

	entityID := d.EntityID
	if entityID == "" {
		entityID, err = e.CreateEntity(ctx, p)
	} else {
		err = e.UpdateEntity(ctx, d.EntityType, entityID, p)
	}
	if err != nil {
		return "", err
	}
	if err := ds.Delete(ctx, id); err != nil {
		return "", err
	}
	return entityID, nil
}
