// Package models defines the local data model of the TravelLife offline
// engine: versioned offline records, queued sync operations, conflicts,
// id mappings, drafts and the derived search index.
package models

// EntityType identifies one of the travel-domain entity kinds the engine
// syncs. The engine never interprets domain semantics beyond identifiers
// and timestamps; the type tag is what the replay loop dispatches on.
type EntityType string

const (
	EntityTrip           EntityType = "trip"
	EntityActivity       EntityType = "activity"
	EntityLodging        EntityType = "lodging"
	EntityTransportation EntityType = "transportation"
	EntityJournalEntry   EntityType = "journal_entry"
	EntityPhoto          EntityType = "photo"
	EntityCompanion      EntityType = "companion"
	EntityChecklist      EntityType = "checklist"
	EntityChecklistItem  EntityType = "checklist_item"
)

// EntityTypes lists every known entity type in a stable order.
var EntityTypes = []EntityType{
	EntityTrip,
	EntityActivity,
	EntityLodging,
	EntityTransportation,
	EntityJournalEntry,
	EntityPhoto,
	EntityCompanion,
	EntityChecklist,
	EntityChecklistItem,
}

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	for _, k := range EntityTypes {
		if t == k {
			return true
		}
	}
	return false
}

// referenceFields maps each entity type to the JSON payload fields that may
// hold another entity's id. Identifier reconciliation rewrites exactly these
// fields; nothing else in a payload is ever touched.
var referenceFields = map[EntityType][]string{
	EntityTrip:           nil,
	EntityActivity:       {"tripId", "checklistId"},
	EntityLodging:        {"tripId"},
	EntityTransportation: {"tripId"},
	EntityJournalEntry:   {"tripId", "activityId"},
	EntityPhoto:          {"tripId", "activityId", "journalEntryId"},
	EntityCompanion:      {"tripId"},
	EntityChecklist:      {"tripId"},
	EntityChecklistItem:  {"tripId", "checklistId"},
}

// ReferenceFields returns the payload field names of t that may reference
// other entities. The returned slice must not be modified.
func ReferenceFields(t EntityType) []string {
	return referenceFields[t]
}

// referenceFieldNames maps an entity type to the JSON field name other
// payloads use when referencing it. Types nobody references are absent.
var referenceFieldNames = map[EntityType]string{
	EntityTrip:         "tripId",
	EntityActivity:     "activityId",
	EntityJournalEntry: "journalEntryId",
	EntityChecklist:    "checklistId",
}

// ReferenceFieldFor returns the JSON field name used to reference entities
// of type t, or "" when no other payload can reference t.
func ReferenceFieldFor(t EntityType) string {
	return referenceFieldNames[t]
}

// References reports whether payloads of type t carry the given reference
// field.
func References(t EntityType, field string) bool {
	for _, f := range referenceFields[t] {
		if f == field {
			return true
		}
	}
	return false
}
