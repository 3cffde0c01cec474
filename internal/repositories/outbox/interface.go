package outbox

import (
	"context"
	"time"

	"github.com/dmitrijs2005/travellife/internal/models"
)

// Repository is the ordered log of pending mutations. The autoincrement id
// defines enqueue order; the drainer relies on it for per-lineage FIFO.
type Repository interface {
	// Enqueue appends an operation and returns its assigned id.
	Enqueue(ctx context.Context, op *models.SyncOperation) (int64, error)

	// Get returns one operation, or common.ErrorNotFound.
	Get(ctx context.Context, id int64) (*models.SyncOperation, error)

	// Pending returns every queued or blocked operation in enqueue order.
	Pending(ctx context.Context) ([]*models.SyncOperation, error)

	// Failed returns operations whose retry budget is exhausted.
	Failed(ctx context.Context) ([]*models.SyncOperation, error)

	// FindQueuedCreate returns the still-queued create for a locally created
	// entity, or common.ErrorNotFound. Used for coalescing at enqueue time.
	FindQueuedCreate(ctx context.Context, t models.EntityType, localID string) (*models.SyncOperation, error)

	// ForEntity returns the queued/blocked operations targeting one entity,
	// matched by entity id or local id, in enqueue order.
	ForEntity(ctx context.Context, t models.EntityType, id string) ([]*models.SyncOperation, error)

	// UpdatePayload replaces an operation's payload in place.
	UpdatePayload(ctx context.Context, id int64, payload []byte) error

	// RewriteEntityID repoints queued operations from localID to serverID
	// after reconciliation, keeping local_id for lineage grouping.
	RewriteEntityID(ctx context.Context, t models.EntityType, localID, serverID string) error

	// RewriteTripID repoints the trip scope of queued operations after a
	// trip's identifier reconciliation.
	RewriteTripID(ctx context.Context, localID, serverID string) error

	// Delete removes a confirmed or cancelled operation.
	Delete(ctx context.Context, id int64) error

	// DeleteForLineage removes every queued operation for a locally created
	// entity (delete-cancels-create coalescing).
	DeleteForLineage(ctx context.Context, t models.EntityType, localID string) error

	// MarkRetry persists a failed attempt: bumped retry count, backoff
	// deadline and the error text.
	MarkRetry(ctx context.Context, id int64, retryCount int, nextAttemptAt time.Time, lastError string) error

	// MarkBlocked parks an operation behind a pending conflict.
	MarkBlocked(ctx context.Context, id int64, conflictID int64) error

	// MarkFailed takes an operation out of rotation permanently.
	MarkFailed(ctx context.Context, id int64, lastError string) error

	// BlockedByConflict returns the operations parked behind one conflict.
	BlockedByConflict(ctx context.Context, conflictID int64) ([]*models.SyncOperation, error)

	// Requeue puts a blocked or failed operation back in rotation with a
	// fresh base version, resetting its retry state.
	Requeue(ctx context.Context, id int64, baseVersion int64, force bool) error

	// Counts reports queued, blocked and failed operation counts.
	Counts(ctx context.Context) (queued, blocked, failed int, err error)
}
