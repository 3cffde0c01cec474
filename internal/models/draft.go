package models

import "time"

// LocalDraft holds ephemeral, unsynced form state so in-progress user input
// survives a restart. Drafts are not part of the authoritative entity set
// and are excluded from conflict detection; promoting one turns it into a
// real mutation and removes the draft row.
type LocalDraft struct {
	ID         string
	EntityType EntityType
	TripID     string

	// EntityID is set when the draft edits an existing entity; empty for
	// drafts of new entities.
	EntityID string

	Data []byte

	CreatedAt time.Time
	UpdatedAt time.Time
}
