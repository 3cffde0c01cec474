package models

import "time"

// OfflineRecord is the local, versioned copy of a server entity.
//
// ID is the canonical identifier used by the record store. For entities
// created while offline it starts as a locally generated UUID; once the
// create is confirmed, the id becomes the server-assigned one and LocalID
// keeps the original for audit.
type OfflineRecord struct {
	// ID is the canonical identifier of the record.
	ID string

	// EntityType tags the payload kind.
	EntityType EntityType

	// TripID scopes trip-level entities; empty for trips themselves.
	TripID string

	// LocalID is the original client-generated UUID, retained after the
	// server assigns the final id. Empty for records that never existed
	// only locally.
	LocalID string

	// Data is the JSON-encoded payload (see DecodePayload).
	Data []byte

	// Version increases monotonically on every local or server-origin
	// write. It is the optimistic-concurrency comparison key and is never
	// reset.
	Version int64

	// SyncedVersion is the last server-confirmed version. Queued mutations
	// carry it as their base version; the record has unsynced changes iff
	// Version > SyncedVersion.
	SyncedVersion int64

	// LastSync is the time this record last agreed with the server.
	// Zero for records that have never been synced.
	LastSync time.Time
}

// Payload decodes the record's data by its entity type tag.
func (r *OfflineRecord) Payload() (Payload, error) {
	return DecodePayload(r.EntityType, r.Data)
}
