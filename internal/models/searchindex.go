package models

import (
	"strings"
	"time"
)

// SearchIndexEntry is a derived, rebuildable projection of an offline
// record for client-side search. It is a cache, never a source of truth:
// dropping the whole index and rebuilding it from the record store is
// always safe.
type SearchIndexEntry struct {
	// ID is "entityType:entityId".
	ID string

	EntityType EntityType
	EntityID   string
	TripID     string

	SearchableText string
	Title          string
	Subtitle       string

	IndexedAt time.Time
}

// SearchIndexID builds the composite index key for an entity.
func SearchIndexID(t EntityType, entityID string) string {
	return string(t) + ":" + entityID
}

// BuildSearchIndexEntry derives an index entry from a record, or nil when
// the payload cannot be decoded (a corrupt payload is not worth failing a
// rebuild over).
func BuildSearchIndexEntry(r *OfflineRecord, now time.Time) *SearchIndexEntry {
	p, err := r.Payload()
	if err != nil {
		return nil
	}
	title, subtitle, text := p.SearchFields()
	searchable := strings.ToLower(strings.TrimSpace(strings.Join([]string{title, subtitle, text}, " ")))
	return &SearchIndexEntry{
		ID:             SearchIndexID(r.EntityType, r.ID),
		EntityType:     r.EntityType,
		EntityID:       r.ID,
		TripID:         r.TripID,
		SearchableText: searchable,
		Title:          title,
		Subtitle:       subtitle,
		IndexedAt:      now,
	}
}
