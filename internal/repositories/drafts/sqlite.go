package drafts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/travellife/internal/common"
	"github.com/dmitrijs2005/travellife/internal/dbx"
	"github.com/dmitrijs2005/travellife/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Save(ctx context.Context, d *models.LocalDraft) error {
	now := time.Now().UTC()
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	query := ` INSERT INTO local_drafts (id, entity_type, trip_id, entity_id, data, created_at, updated_at)
			values (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET data = excluded.data,
				updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		d.ID, d.EntityType, d.TripID, d.EntityID, string(d.Data), createdAt, now)
	if err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	d.CreatedAt = createdAt
	d.UpdatedAt = now
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.LocalDraft, error) {
	d := &models.LocalDraft{}
	var data string
	err := r.db.QueryRowContext(ctx,
		`select id, entity_type, trip_id, entity_id, data, created_at, updated_at
			from local_drafts where id=?`, id).
		Scan(&d.ID, &d.EntityType, &d.TripID, &d.EntityID, &data, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select draft: %w", err)
	}
	d.Data = []byte(data)
	return d, nil
}

func (r *SQLiteRepository) ListByTrip(ctx context.Context, tripID string) ([]models.LocalDraft, error) {
	rows, err := r.db.QueryContext(ctx,
		`select id, entity_type, trip_id, entity_id, data, created_at, updated_at
			from local_drafts where trip_id=? order by updated_at desc`, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to select drafts: %w", err)
	}
	defer rows.Close()

	var result []models.LocalDraft
	for rows.Next() {
		var (
			d    models.LocalDraft
			data string
		)
		if err := rows.Scan(&d.ID, &d.EntityType, &d.TripID, &d.EntityID, &data, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		d.Data = []byte(data)
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `delete from local_drafts where id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}
