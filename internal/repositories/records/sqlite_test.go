package records

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/travellife/internal/common"
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

func activityRecord(id, tripID string) *models.OfflineRecord {
	return &models.OfflineRecord{
		ID:         id,
		EntityType: models.EntityActivity,
		TripID:     tripID,
		Data:       []byte(`{"tripId":"` + tripID + `","title":"walk"}`),
		Version:    1,
	}
}

func TestUpsertAndGetByID(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, activityRecord("a-1", "t-1")))

	got, err := r.GetByID(ctx, models.EntityActivity, "a-1")
	require.NoError(t, err)
	assert.Equal(t, "t-1", got.TripID)
	assert.Equal(t, int64(1), got.Version)
	assert.True(t, got.LastSync.IsZero())
}

func TestGetByID_NotFound(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	_, err := r.GetByID(context.Background(), models.EntityActivity, "absent")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUpsert_ReplacesExisting(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	rec := activityRecord("a-1", "t-1")
	require.NoError(t, r.Upsert(ctx, rec))

	rec.Data = []byte(`{"tripId":"t-1","title":"museum"}`)
	rec.Version = 2
	require.NoError(t, r.Upsert(ctx, rec))

	got, err := r.GetByID(ctx, models.EntityActivity, "a-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Contains(t, string(got.Data), "museum")
}

func TestGetByTrip_FiltersScope(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, activityRecord("a-1", "t-1")))
	require.NoError(t, r.Upsert(ctx, activityRecord("a-2", "t-1")))
	require.NoError(t, r.Upsert(ctx, activityRecord("a-3", "t-2")))

	got, err := r.GetByTrip(ctx, "t-1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRewriteID_KeepsLocalID(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, activityRecord("local-1", "t-1")))
	require.NoError(t, r.RewriteID(ctx, models.EntityActivity, "local-1", "srv-1"))

	_, err := r.GetByID(ctx, models.EntityActivity, "local-1")
	require.ErrorIs(t, err, common.ErrorNotFound)

	got, err := r.GetByID(ctx, models.EntityActivity, "srv-1")
	require.NoError(t, err)
	assert.Equal(t, "local-1", got.LocalID)
}

func TestRewriteID_MissingRecord(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	err := r.RewriteID(context.Background(), models.EntityActivity, "nope", "srv-1")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUpdateData_BumpsVersion(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, activityRecord("a-1", "t-1")))
	require.NoError(t, r.UpdateData(ctx, models.EntityActivity, "a-1", []byte(`{"tripId":"t-1","title":"v2"}`)))

	got, err := r.GetByID(ctx, models.EntityActivity, "a-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
}

func TestMarkSynced(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, activityRecord("a-1", "t-1")))

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, r.MarkSynced(ctx, models.EntityActivity, "a-1", 5, at))

	got, err := r.GetByID(ctx, models.EntityActivity, "a-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Version)
	assert.Equal(t, int64(5), got.SyncedVersion)
	assert.False(t, got.LastSync.IsZero())
}

func TestDelete_Idempotent(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, activityRecord("a-1", "t-1")))
	require.NoError(t, r.Delete(ctx, models.EntityActivity, "a-1"))
	require.NoError(t, r.Delete(ctx, models.EntityActivity, "a-1"))

	_, err := r.GetByID(ctx, models.EntityActivity, "a-1")
	require.ErrorIs(t, err, common.ErrorNotFound)
}
