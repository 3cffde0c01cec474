package drafts

import (
	"context"
	"database/sql"
	"testing"

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

func TestSaveAndGet_DefaultsApplied(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	d := &models.LocalDraft{
		ID:         "d-1",
		EntityType: models.EntityJournalEntry,
		TripID:     "t-1",
		Data:       []byte(`{"title":"day one"}`),
	}
	require.NoError(t, r.Save(ctx, d))
	assert.False(t, d.UpdatedAt.IsZero())

	got, err := r.GetByID(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, models.EntityJournalEntry, got.EntityType)
	assert.Contains(t, string(got.Data), "day one")
}

func TestSave_UpsertKeepsCreatedAt(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	d := &models.LocalDraft{ID: "d-1", EntityType: models.EntityTrip, Data: []byte(`{}`)}
	require.NoError(t, r.Save(ctx, d))
	created := d.CreatedAt

	d.Data = []byte(`{"name":"Japan"}`)
	require.NoError(t, r.Save(ctx, d))

	got, err := r.GetByID(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, created.Unix(), got.CreatedAt.Unix())
	assert.Contains(t, string(got.Data), "Japan")
}

func TestDelete_Idempotent(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Save(ctx, &models.LocalDraft{ID: "d-1", EntityType: models.EntityTrip, Data: []byte(`{}`)}))

	require.NoError(t, r.Delete(ctx, "d-1"))
	require.NoError(t, r.Delete(ctx, "d-1"))
	_, err := r.GetByID(ctx, "d-1")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestListByTrip(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Save(ctx, &models.LocalDraft{ID: "d-1", EntityType: models.EntityActivity, TripID: "t-1", Data: []byte(`{}`)}))
	require.NoError(t, r.Save(ctx, &models.LocalDraft{ID: "d-2", EntityType: models.EntityActivity, TripID: "t-2", Data: []byte(`{}`)}))

	got, err := r.ListByTrip(ctx, "t-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "d-1", got[0].ID)
}
