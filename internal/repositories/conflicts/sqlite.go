package conflicts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
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

const conflictColumns = `id, entity_type, entity_id, trip_id, local_data, server_data,
	local_version, server_version, local_ts, server_ts, status, resolution, resolved_at, created_at`

func scanConflict(row interface{ Scan(...any) error }) (*models.SyncConflict, error) {
	var (
		c          models.SyncConflict
		localData  sql.NullString
		serverData sql.NullString
		localTS    sql.NullTime
		serverTS   sql.NullTime
		resolvedAt sql.NullTime
	)
	err := row.Scan(&c.ID, &c.EntityType, &c.EntityID, &c.TripID, &localData, &serverData,
		&c.LocalVersion, &c.ServerVersion, &localTS, &serverTS, &c.Status, &c.Resolution,
		&resolvedAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if localData.Valid {
		c.LocalData = []byte(localData.String)
	}
	if serverData.Valid {
		c.ServerData = []byte(serverData.String)
	}
	if localTS.Valid {
		c.LocalTimestamp = localTS.Time
	}
	if serverTS.Valid {
		c.ServerTimestamp = serverTS.Time
	}
	if resolvedAt.Valid {
		c.ResolvedAt = resolvedAt.Time
	}
	return &c, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, c *models.SyncConflict) (int64, error) {
	query := ` INSERT INTO sync_conflicts
			(entity_type, entity_id, trip_id, local_data, server_data,
			 local_version, server_version, local_ts, server_ts, status, created_at)
			values (?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending', ?)
	`
	var localTS, serverTS any
	if !c.LocalTimestamp.IsZero() {
		localTS = c.LocalTimestamp
	}
	if !c.ServerTimestamp.IsZero() {
		serverTS = c.ServerTimestamp
	}
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	result, err := r.db.ExecContext(ctx, query,
		c.EntityType, c.EntityID, c.TripID, string(c.LocalData), string(c.ServerData),
		c.LocalVersion, c.ServerVersion, localTS, serverTS, createdAt)
	if err != nil {
		// the partial unique index allows one pending conflict per entity
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, fmt.Errorf("conflict for %s/%s: %w", c.EntityType, c.EntityID, common.ErrConflictPending)
		}
		return 0, fmt.Errorf("failed to insert conflict: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get conflict id: %w", err)
	}
	c.ID = id
	c.Status = models.ConflictPending
	c.CreatedAt = createdAt
	return id, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*models.SyncConflict, error) {
	c, err := scanConflict(r.db.QueryRowContext(ctx,
		`select `+conflictColumns+` from sync_conflicts where id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select conflict: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) PendingForEntity(ctx context.Context, t models.EntityType, entityID string) (*models.SyncConflict, error) {
	c, err := scanConflict(r.db.QueryRowContext(ctx,
		`select `+conflictColumns+` from sync_conflicts
			where status='pending' and entity_type=? and entity_id=?`,
		t, entityID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select pending conflict: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListPending(ctx context.Context) ([]*models.SyncConflict, error) {
	rows, err := r.db.QueryContext(ctx,
		`select `+conflictColumns+` from sync_conflicts where status='pending' order by id`)
	if err != nil {
		return nil, fmt.Errorf("failed to select conflicts: %w", err)
	}
	defer rows.Close()

	var result []*models.SyncConflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) MarkResolved(ctx context.Context, id int64, res models.Resolution, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`update sync_conflicts set status='resolved', resolution=?, resolved_at=?
			where id=? and status='pending'`,
		res, at, id)
	if err != nil {
		return fmt.Errorf("failed to resolve conflict: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n != 1 {
		// either the conflict does not exist or it is already frozen
		if _, gerr := r.GetByID(ctx, id); gerr != nil {
			return gerr
		}
		return common.ErrConflictResolved
	}
	return nil
}

func (r *SQLiteRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`select count(*) from sync_conflicts where status='pending'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count conflicts: %w", err)
	}
	return n, nil
}
