package models

import "time"

// OpType is the kind of a queued mutation.
type OpType string

const (
	OpCreate OpType = "create"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
)

// OpStatus is the lifecycle state of a queued operation.
type OpStatus string

const (
	// OpQueued means the operation is waiting for the next drain pass.
	OpQueued OpStatus = "queued"

	// OpBlocked means a pending conflict must be resolved before the
	// operation (and everything behind it in its lineage) may proceed.
	OpBlocked OpStatus = "blocked"

	// OpFailed means the retry budget was exhausted or the server rejected
	// the operation permanently. Failed operations are surfaced, never
	// silently dropped.
	OpFailed OpStatus = "failed"
)

// SyncOperation is one pending create/update/delete awaiting confirmation
// by the server. Operations for the same entity lineage are applied
// strictly in enqueue order.
type SyncOperation struct {
	// ID is assigned by the outbox (autoincrement) and defines enqueue order.
	ID int64

	Op         OpType
	EntityType EntityType

	// EntityID is the id the operation targets. Before reconciliation of an
	// offline create this equals LocalID.
	EntityID string

	// LocalID is set when the target entity was created offline and has not
	// (or had not, at enqueue time) been assigned a server id yet.
	LocalID string

	TripID string

	// Payload is the JSON-encoded mutation body; empty for deletes.
	Payload []byte

	// Timestamp is the local wall-clock time the mutation was made.
	Timestamp time.Time

	// BaseVersion is the record version the mutation was applied against;
	// the server compares it for optimistic concurrency.
	BaseVersion int64

	// Force skips the server's version check. Set when replaying the
	// "keep local" outcome of a resolved conflict.
	Force bool

	RetryCount int

	// NextAttemptAt delays retries; zero means eligible immediately.
	NextAttemptAt time.Time

	Status OpStatus

	// ConflictID links a blocked operation to its pending conflict.
	ConflictID int64

	// LastError records the most recent failure, for surfacing to the user.
	LastError string
}

// LineageKey identifies the causal chain the operation belongs to:
// the original local id when there is one, the entity id otherwise.
// Operations sharing a lineage key are never reordered or parallelized.
func (o *SyncOperation) LineageKey() string {
	if o.LocalID != "" {
		return string(o.EntityType) + ":" + o.LocalID
	}
	return string(o.EntityType) + ":" + o.EntityID
}
