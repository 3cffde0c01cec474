package syncengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/travellife/internal/common"
	"github.com/dmitrijs2005/travellife/internal/models"
)

// seedConflict gets one entity into a blocked-on-conflict state: the server
// copy moved to version 2 while the local edit was based on version 1.
func seedConflict(t *testing.T, e *Engine, srv *fakeServer) *models.SyncConflict {
	t.Helper()
	ctx := context.Background()

	srv.seed(models.EntityActivity, "a-1", 2, []byte(`{"tripId":"t-1","title":"server copy"}`))
	require.NoError(t, e.records.Upsert(ctx, &models.OfflineRecord{
		ID:            "a-1",
		EntityType:    models.EntityActivity,
		TripID:        "t-1",
		Data:          []byte(`{"tripId":"t-1","title":"stale local"}`),
		Version:       1,
		SyncedVersion: 1,
	}))
	require.NoError(t, e.UpdateEntity(ctx, models.EntityActivity, "a-1", activity("t-1", "my edit")))

	res, err := e.Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Blocked)

	pending, err := e.PendingConflicts(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	return pending[0]
}

func TestResolveConflict_KeepLocal(t *testing.T) {
	e, srv := newTestEngine(t, Config{})
	ctx := context.Background()
	c := seedConflict(t, e, srv)

	require.NoError(t, e.ResolveConflict(ctx, c.ID, models.ResolutionLocal, nil))

	res, err := e.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)

	// the local edit force-pushed past the server's newer copy
	remote := srv.record(models.EntityActivity, "a-1")
	require.NotNil(t, remote)
	assert.Contains(t, string(remote.Data), "my edit")
	assert.Equal(t, int64(3), remote.Version)

	rec, err := e.Record(ctx, models.EntityActivity, "a-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.SyncedVersion)

	st, err := e.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSynced, st.Status)
}

func TestResolveConflict_KeepServer(t *testing.T) {
	e, srv := newTestEngine(t, Config{})
	ctx := context.Background()
	c := seedConflict(t, e, srv)

	require.NoError(t, e.ResolveConflict(ctx, c.ID, models.ResolutionServer, nil))

	// local copy now mirrors the server, nothing left to sync
	rec, err := e.Record(ctx, models.EntityActivity, "a-1")
	require.NoError(t, err)
	assert.Contains(t, string(rec.Data), "server copy")
	assert.Equal(t, int64(2), rec.Version)
	assert.Equal(t, int64(2), rec.SyncedVersion)

	ops, err := e.outbox.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, ops)
	assert.Len(t, srv.callsOf(models.OpUpdate), 1) // only the rejected attempt

	st, err := e.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSynced, st.Status)
}

func TestResolveConflict_Merge(t *testing.T) {
	e, srv := newTestEngine(t, Config{})
	ctx := context.Background()
	c := seedConflict(t, e, srv)

	merged := []byte(`{"tripId":"t-1","title":"merged title"}`)
	require.NoError(t, e.ResolveConflict(ctx, c.ID, models.ResolutionMerge, merged))

	res, err := e.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)

	remote := srv.record(models.EntityActivity, "a-1")
	require.NotNil(t, remote)
	assert.Contains(t, string(remote.Data), "merged title")

	rec, err := e.Record(ctx, models.EntityActivity, "a-1")
	require.NoError(t, err)
	assert.Contains(t, string(rec.Data), "merged title")
	assert.Equal(t, int64(3), rec.SyncedVersion)
}

func TestResolveConflict_MergeRequiresPayload(t *testing.T) {
	e, srv := newTestEngine(t, Config{})
	c := seedConflict(t, e, srv)

	err := e.ResolveConflict(context.Background(), c.ID, models.ResolutionMerge, nil)
	require.Error(t, err)

	pending, perr := e.PendingConflicts(context.Background())
	require.NoError(t, perr)
	assert.Len(t, pending, 1)
}

func TestResolveConflict_AlreadyResolved(t *testing.T) {
	e, srv := newTestEngine(t, Config{})
	ctx := context.Background()
	c := seedConflict(t, e, srv)

	require.NoError(t, e.ResolveConflict(ctx, c.ID, models.ResolutionServer, nil))
	err := e.ResolveConflict(ctx, c.ID, models.ResolutionLocal, nil)
	assert.ErrorIs(t, err, common.ErrConflictResolved)
}

func TestResolveConflict_NewConflictAllowedAfterResolution(t *testing.T) {
	e, srv := newTestEngine(t, Config{})
	ctx := context.Background()
	c := seedConflict(t, e, srv)

	require.NoError(t, e.ResolveConflict(ctx, c.ID, models.ResolutionServer, nil))

	// the entity diverges again later
	srv.seed(models.EntityActivity, "a-1", 7, []byte(`{"tripId":"t-1","title":"moved again"}`))
	require.NoError(t, e.UpdateEntity(ctx, models.EntityActivity, "a-1", activity("t-1", "second edit")))

	res, err := e.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Blocked)

	pending, err := e.PendingConflicts(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(7), pending[0].ServerVersion)
}
