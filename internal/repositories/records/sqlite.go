package records

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

const recordColumns = `entity_type, id, trip_id, local_id, data, version, synced_version, last_sync`

func scanRecord(row interface{ Scan(...any) error }) (*models.OfflineRecord, error) {
	var (
		rec      models.OfflineRecord
		lastSync sql.NullTime
	)
	err := row.Scan(&rec.EntityType, &rec.ID, &rec.TripID, &rec.LocalID, &rec.Data, &rec.Version, &rec.SyncedVersion, &lastSync)
	if err != nil {
		return nil, err
	}
	if lastSync.Valid {
		rec.LastSync = lastSync.Time
	}
	return &rec, nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, rec *models.OfflineRecord) error {
	query := ` INSERT INTO offline_records (entity_type, id, trip_id, local_id, data, version, synced_version, last_sync)
			values (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(entity_type, id) DO UPDATE SET trip_id = excluded.trip_id,
				local_id = excluded.local_id,
				data = excluded.data,
				version = excluded.version,
				synced_version = excluded.synced_version,
				last_sync = excluded.last_sync
	`
	var lastSync any
	if !rec.LastSync.IsZero() {
		lastSync = rec.LastSync
	}
	_, err := r.db.ExecContext(ctx, query,
		rec.EntityType, rec.ID, rec.TripID, rec.LocalID, rec.Data, rec.Version, rec.SyncedVersion, lastSync)
	if err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, t models.EntityType, id string) (*models.OfflineRecord, error) {
	query := `select ` + recordColumns + ` from offline_records where entity_type=? and id=?`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, t, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select record: %w", err)
	}
	return rec, nil
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]models.OfflineRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []models.OfflineRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) GetByTrip(ctx context.Context, tripID string) ([]models.OfflineRecord, error) {
	return r.list(ctx, `select `+recordColumns+` from offline_records where trip_id=? order by entity_type, id`, tripID)
}

func (r *SQLiteRepository) GetAllOfType(ctx context.Context, t models.EntityType) ([]models.OfflineRecord, error) {
	return r.list(ctx, `select `+recordColumns+` from offline_records where entity_type=? order by id`, t)
}

func (r *SQLiteRepository) All(ctx context.Context) ([]models.OfflineRecord, error) {
	return r.list(ctx, `select `+recordColumns+` from offline_records order by entity_type, id`)
}

func (r *SQLiteRepository) Delete(ctx context.Context, t models.EntityType, id string) error {
	_, err := r.db.ExecContext(ctx, `delete from offline_records where entity_type=? and id=?`, t, id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) RewriteID(ctx context.Context, t models.EntityType, localID, serverID string) error {
	result, err := r.db.ExecContext(ctx,
		`update offline_records set id=?, local_id=? where entity_type=? and id=?`,
		serverID, localID, t, localID)
	if err != nil {
		return fmt.Errorf("failed to rewrite record id: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("rewrite id %s/%s: %w", t, localID, common.ErrorNotFound)
	}
	return nil
}

func (r *SQLiteRepository) RewriteTripID(ctx context.Context, localID, serverID string) error {
	_, err := r.db.ExecContext(ctx,
		`update offline_records set trip_id=? where trip_id=?`, serverID, localID)
	if err != nil {
		return fmt.Errorf("failed to rewrite trip id: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateData(ctx context.Context, t models.EntityType, id string, data []byte) error {
	result, err := r.db.ExecContext(ctx,
		`update offline_records set data=?, version=version+1 where entity_type=? and id=?`,
		data, t, id)
	if err != nil {
		return fmt.Errorf("failed to update record data: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("update data %s/%s: %w", t, id, common.ErrorNotFound)
	}
	return nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, t models.EntityType, id string, version int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`update offline_records set version=?, synced_version=?, last_sync=? where entity_type=? and id=?`,
		version, version, at, t, id)
	if err != nil {
		return fmt.Errorf("failed to mark record synced: %w", err)
	}
	return nil
}
