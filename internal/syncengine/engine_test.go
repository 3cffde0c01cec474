package syncengine

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/travellife/internal/common"
	"github.com/dmitrijs2005/travellife/internal/logging"
	"github.com/dmitrijs2005/travellife/internal/migrations"
	"github.com/dmitrijs2005/travellife/internal/models"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrations.Migrations)
	require.NoError(t, goose.SetDialect("sqlite3"))
	require.NoError(t, goose.UpContext(context.Background(), db, "."))
	return db
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *fakeServer) {
	t.Helper()
	if cfg.Parallelism == 0 {
		cfg.Parallelism = 1
	}
	srv := newFakeServer()
	e := New(setupDB(t), srv, logging.NewNopLogger(), cfg)
	return e, srv
}

func activity(tripID, title string) models.ActivityPayload {
	return models.ActivityPayload{TripID: tripID, Title: title}
}

func TestCreateEntity_QueuesCreateAndIndexes(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	ctx := context.Background()

	id, err := e.CreateEntity(ctx, activity("t-1", "Castle tour"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec, err := e.Record(ctx, models.EntityActivity, id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.LocalID)
	assert.Equal(t, int64(1), rec.Version)
	assert.Equal(t, int64(0), rec.SyncedVersion)

	st, err := e.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.PendingCount)
	assert.Equal(t, models.StatusPending, st.Status)

	hits, err := e.Search(ctx, "t-1", "castle")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, id, hits[0].EntityID)
}

func TestUpdateEntity_CoalescesIntoQueuedCreate(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	ctx := context.Background()

	id, err := e.CreateEntity(ctx, activity("t-1", "Castle tour"))
	require.NoError(t, err)
	require.NoError(t, e.UpdateEntity(ctx, models.EntityActivity, id, activity("t-1", "Castle at night")))

	ops, err := e.outbox.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, models.OpCreate, ops[0].Op)
	assert.Contains(t, string(ops[0].Payload), "Castle at night")

	rec, err := e.Record(ctx, models.EntityActivity, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.Version)
}

func TestDeleteEntity_CancelsUnsentCreate(t *testing.T) {
	e, srv := newTestEngine(t, Config{})
	ctx := context.Background()

	id, err := e.CreateEntity(ctx, activity("t-1", "Castle tour"))
	require.NoError(t, err)
	require.NoError(t, e.DeleteEntity(ctx, models.EntityActivity, id))

	ops, err := e.outbox.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, ops)

	_, err = e.Record(ctx, models.EntityActivity, id)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	res, err := e.Drain(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Applied)
	assert.Empty(t, srv.calls)
}

// Three activities created offline, one edited, one deleted before going
// online: the server must see exactly two creates, the edit folded into its
// create, and no trace of the cancelled one.
func TestOfflineSession_CoalescedReplay(t *testing.T) {
	e, srv := newTestEngine(t, Config{})
	ctx := context.Background()

	a1, err := e.CreateEntity(ctx, activity("t-1", "Ramen tasting"))
	require.NoError(t, err)
	a2, err := e.CreateEntity(ctx, activity("t-1", "Castle tour"))
	require.NoError(t, err)
	a3, err := e.CreateEntity(ctx, activity("t-1", "Fish market"))
	require.NoError(t, err)

	require.NoError(t, e.UpdateEntity(ctx, models.EntityActivity, a2, activity("t-1", "Castle at night")))
	require.NoError(t, e.DeleteEntity(ctx, models.EntityActivity, a3))

	res, err := e.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)

	creates := srv.callsOf(models.OpCreate)
	require.Len(t, creates, 2)
	assert.Empty(t, srv.callsOf(models.OpUpdate))
	assert.Empty(t, srv.callsOf(models.OpDelete))
	assert.Equal(t, a1, creates[0].entityID)
	assert.Equal(t, a2, creates[1].entityID)
	assert.Contains(t, string(creates[1].payload), "Castle at night")

	st, err := e.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSynced, st.Status)
	assert.Zero(t, st.PendingCount)
	assert.False(t, st.LastSyncTime.IsZero())
}

func TestStatus_Offline(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	e.SetOnline(false)

	st, err := e.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StatusOffline, st.Status)
}

func TestDrain_SingleFlight(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	e.draining.Store(true)

	_, err := e.Drain(context.Background())
	assert.ErrorIs(t, err, ErrDrainInProgress)
}

func TestRebuildSearchIndex(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	ctx := context.Background()

	_, err := e.CreateEntity(ctx, activity("t-1", "Castle tour"))
	require.NoError(t, err)
	_, err = e.CreateEntity(ctx, activity("t-1", "Fish market"))
	require.NoError(t, err)
	require.NoError(t, e.search.Clear(ctx))

	indexed, skipped, err := e.RebuildSearchIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, indexed)
	assert.Zero(t, skipped)

	hits, err := e.Search(ctx, "", "castle")
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestRebuildSearchIndex_SkipsCorruptPayloads(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	ctx := context.Background()

	_, err := e.CreateEntity(ctx, activity("t-1", "Castle tour"))
	require.NoError(t, err)
	require.NoError(t, e.records.Upsert(ctx, &models.OfflineRecord{
		ID:         "bad-1",
		EntityType: models.EntityActivity,
		TripID:     "t-1",
		Data:       []byte(`{broken`),
		Version:    1,
	}))

	indexed, skipped, err := e.RebuildSearchIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, indexed)
	assert.Equal(t, 1, skipped)
}

func TestExportImportState_RoundTrip(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	e.mu.Lock()
	e.lastSyncTime = at
	e.lastError = "server error 503"
	e.mu.Unlock()

	raw := e.ExportState()
	require.NotEmpty(t, raw)

	restored, _ := newTestEngine(t, Config{})
	restored.ImportState(raw)

	st, err := restored.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, st.LastSyncTime.Equal(at))
	assert.Equal(t, "server error 503", st.LastError)
}

func TestImportState_IgnoresGarbage(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	e.mu.Lock()
	e.lastSyncTime = at
	e.mu.Unlock()

	e.ImportState(nil)
	e.ImportState([]byte(`{broken`))

	st, err := e.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, st.LastSyncTime.Equal(at))
}

func fixedClock(e *Engine, at time.Time) func(time.Time) {
	e.now = func() time.Time { return at }
	return func(next time.Time) { e.now = func() time.Time { return next } }
}
