package models

import "time"

// ConflictStatus is the lifecycle state of a sync conflict.
type ConflictStatus string

const (
	ConflictPending  ConflictStatus = "pending"
	ConflictResolved ConflictStatus = "resolved"
)

// Resolution is the strategy applied to a conflict.
type Resolution string

const (
	// ResolutionLocal force-pushes the local data, bumping the server version.
	ResolutionLocal Resolution = "local"

	// ResolutionServer discards local changes and adopts the server data.
	ResolutionServer Resolution = "server"

	// ResolutionMerge applies a caller-supplied merged payload as a fresh
	// local change.
	ResolutionMerge Resolution = "merge"
)

// SyncConflict records a detected divergence between the local and server
// versions of the same entity. A conflict is immutable once resolved, and
// at most one pending conflict exists per entity at a time.
type SyncConflict struct {
	ID int64

	EntityType EntityType
	EntityID   string
	TripID     string

	// LocalData/ServerData are the JSON payloads of the two sides at
	// detection time.
	LocalData  []byte
	ServerData []byte

	LocalVersion  int64
	ServerVersion int64

	LocalTimestamp  time.Time
	ServerTimestamp time.Time

	Status     ConflictStatus
	Resolution Resolution
	ResolvedAt time.Time
	CreatedAt  time.Time
}
