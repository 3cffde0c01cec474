package syncengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/travellife/internal/common"
	"github.com/dmitrijs2005/travellife/internal/models"
)

func TestSaveDraft_AssignsID(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	ctx := context.Background()

	d := &models.LocalDraft{
		EntityType: models.EntityActivity,
		TripID:     "t-1",
		Data:       []byte(`{"tripId":"t-1","title":"half-typed"}`),
	}
	require.NoError(t, e.SaveDraft(ctx, d))
	require.NotEmpty(t, d.ID)

	list, err := e.TripDrafts(ctx, "t-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPromoteDraft_NewEntityBecomesCreate(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	ctx := context.Background()

	d := &models.LocalDraft{
		EntityType: models.EntityActivity,
		TripID:     "t-1",
		Data:       []byte(`{"tripId":"t-1","title":"Castle tour"}`),
	}
	require.NoError(t, e.SaveDraft(ctx, d))

	entityID, err := e.PromoteDraft(ctx, d.ID)
	require.NoError(t, err)
	require.NotEmpty(t, entityID)

	rec, err := e.Record(ctx, models.EntityActivity, entityID)
	require.NoError(t, err)
	assert.Contains(t, string(rec.Data), "Castle tour")

	// the draft is gone, the create is queued
	list, err := e.TripDrafts(ctx, "t-1")
	require.NoError(t, err)
	assert.Empty(t, list)
	ops, err := e.outbox.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, ops, 1)
}

func TestPromoteDraft_ExistingEntityBecomesUpdate(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	ctx := context.Background()

	id, err := e.CreateEntity(ctx, activity("t-1", "Castle tour"))
	require.NoError(t, err)

	d := &models.LocalDraft{
		EntityType: models.EntityActivity,
		TripID:     "t-1",
		EntityID:   id,
		Data:       []byte(`{"tripId":"t-1","title":"Castle at night"}`),
	}
	require.NoError(t, e.SaveDraft(ctx, d))

	got, err := e.PromoteDraft(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	rec, err := e.Record(ctx, models.EntityActivity, id)
	require.NoError(t, err)
	assert.Contains(t, string(rec.Data), "Castle at night")
}

func TestDiscardDraft(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	ctx := context.Background()

	d := &models.LocalDraft{EntityType: models.EntityActivity, TripID: "t-1", Data: []byte(`{}`)}
	require.NoError(t, e.SaveDraft(ctx, d))
	require.NoError(t, e.DiscardDraft(ctx, d.ID))
	require.NoError(t, e.DiscardDraft(ctx, d.ID))

	_, err := e.PromoteDraft(ctx, d.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
