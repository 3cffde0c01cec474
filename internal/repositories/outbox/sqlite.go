package outbox

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

const opColumns = `id, op, entity_type, entity_id, local_id, trip_id, payload, ts,
	base_version, force, retry_count, next_attempt_at, status, conflict_id, last_error`

func scanOp(row interface{ Scan(...any) error }) (*models.SyncOperation, error) {
	var (
		op      models.SyncOperation
		payload sql.NullString
		next    sql.NullTime
		force   int
	)
	err := row.Scan(&op.ID, &op.Op, &op.EntityType, &op.EntityID, &op.LocalID, &op.TripID,
		&payload, &op.Timestamp, &op.BaseVersion, &force, &op.RetryCount, &next,
		&op.Status, &op.ConflictID, &op.LastError)
	if err != nil {
		return nil, err
	}
	if payload.Valid {
		op.Payload = []byte(payload.String)
	}
	if next.Valid {
		op.NextAttemptAt = next.Time
	}
	op.Force = force != 0
	return &op, nil
}

func (r *SQLiteRepository) Enqueue(ctx context.Context, op *models.SyncOperation) (int64, error) {
	query := ` INSERT INTO sync_operations
			(op, entity_type, entity_id, local_id, trip_id, payload, ts, base_version, force, status)
			values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var payload any
	if op.Payload != nil {
		payload = string(op.Payload)
	}
	force := 0
	if op.Force {
		force = 1
	}
	status := op.Status
	if status == "" {
		status = models.OpQueued
	}
	result, err := r.db.ExecContext(ctx, query,
		op.Op, op.EntityType, op.EntityID, op.LocalID, op.TripID, payload,
		op.Timestamp, op.BaseVersion, force, status)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue operation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get operation id: %w", err)
	}
	op.ID = id
	op.Status = status
	return id, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id int64) (*models.SyncOperation, error) {
	op, err := scanOp(r.db.QueryRowContext(ctx,
		`select `+opColumns+` from sync_operations where id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select operation: %w", err)
	}
	return op, nil
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]*models.SyncOperation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select operations: %w", err)
	}
	defer rows.Close()

	var result []*models.SyncOperation
	for rows.Next() {
		op, err := scanOp(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, op)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Pending(ctx context.Context) ([]*models.SyncOperation, error) {
	return r.list(ctx,
		`select `+opColumns+` from sync_operations where status in ('queued','blocked') order by id`)
}

func (r *SQLiteRepository) Failed(ctx context.Context) ([]*models.SyncOperation, error) {
	return r.list(ctx,
		`select `+opColumns+` from sync_operations where status='failed' order by id`)
}

func (r *SQLiteRepository) FindQueuedCreate(ctx context.Context, t models.EntityType, localID string) (*models.SyncOperation, error) {
	op, err := scanOp(r.db.QueryRowContext(ctx,
		`select `+opColumns+` from sync_operations
			where op='create' and status='queued' and entity_type=? and local_id=?`,
		t, localID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select queued create: %w", err)
	}
	return op, nil
}

func (r *SQLiteRepository) ForEntity(ctx context.Context, t models.EntityType, id string) ([]*models.SyncOperation, error) {
	return r.list(ctx,
		`select `+opColumns+` from sync_operations
			where status in ('queued','blocked') and entity_type=? and (entity_id=? or local_id=?)
			order by id`,
		t, id, id)
}

func (r *SQLiteRepository) UpdatePayload(ctx context.Context, id int64, payload []byte) error {
	result, err := r.db.ExecContext(ctx,
		`update sync_operations set payload=? where id=?`, string(payload), id)
	if err != nil {
		return fmt.Errorf("failed to update operation payload: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("update payload of op %d: %w", id, common.ErrorNotFound)
	}
	return nil
}

func (r *SQLiteRepository) RewriteEntityID(ctx context.Context, t models.EntityType, localID, serverID string) error {
	_, err := r.db.ExecContext(ctx,
		`update sync_operations set entity_id=? where entity_type=? and entity_id=? and status in ('queued','blocked')`,
		serverID, t, localID)
	if err != nil {
		return fmt.Errorf("failed to rewrite operation entity id: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) RewriteTripID(ctx context.Context, localID, serverID string) error {
	_, err := r.db.ExecContext(ctx,
		`update sync_operations set trip_id=? where trip_id=? and status in ('queued','blocked')`,
		serverID, localID)
	if err != nil {
		return fmt.Errorf("failed to rewrite operation trip id: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `delete from sync_operations where id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete operation: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteForLineage(ctx context.Context, t models.EntityType, localID string) error {
	_, err := r.db.ExecContext(ctx,
		`delete from sync_operations where entity_type=? and local_id=? and status='queued'`,
		t, localID)
	if err != nil {
		return fmt.Errorf("failed to delete lineage operations: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkRetry(ctx context.Context, id int64, retryCount int, nextAttemptAt time.Time, lastError string) error {
	_, err := r.db.ExecContext(ctx,
		`update sync_operations set retry_count=?, next_attempt_at=?, last_error=? where id=?`,
		retryCount, nextAttemptAt, lastError, id)
	if err != nil {
		return fmt.Errorf("failed to mark operation for retry: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkBlocked(ctx context.Context, id int64, conflictID int64) error {
	_, err := r.db.ExecContext(ctx,
		`update sync_operations set status='blocked', conflict_id=? where id=?`,
		conflictID, id)
	if err != nil {
		return fmt.Errorf("failed to block operation: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkFailed(ctx context.Context, id int64, lastError string) error {
	_, err := r.db.ExecContext(ctx,
		`update sync_operations set status='failed', last_error=? where id=?`,
		lastError, id)
	if err != nil {
		return fmt.Errorf("failed to mark operation failed: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) BlockedByConflict(ctx context.Context, conflictID int64) ([]*models.SyncOperation, error) {
	return r.list(ctx,
		`select `+opColumns+` from sync_operations where status='blocked' and conflict_id=? order by id`,
		conflictID)
}

func (r *SQLiteRepository) Requeue(ctx context.Context, id int64, baseVersion int64, force bool) error {
	f := 0
	if force {
		f = 1
	}
	result, err := r.db.ExecContext(ctx,
		`update sync_operations set status='queued', conflict_id=0, retry_count=0,
			next_attempt_at=null, last_error='', base_version=?, force=? where id=?`,
		baseVersion, f, id)
	if err != nil {
		return fmt.Errorf("failed to requeue operation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("requeue op %d: %w", id, common.ErrorNotFound)
	}
	return nil
}

func (r *SQLiteRepository) Counts(ctx context.Context) (queued, blocked, failed int, err error) {
	rows, err := r.db.QueryContext(ctx,
		`select status, count(*) from sync_operations group by status`)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count operations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return 0, 0, 0, err
		}
		switch models.OpStatus(status) {
		case models.OpQueued:
			queued = n
		case models.OpBlocked:
			blocked = n
		case models.OpFailed:
			failed = n
		}
	}
	if err := rows.Err(); err != nil {
		return 0, 0, 0, err
	}
	return queued, blocked, failed, nil
}
