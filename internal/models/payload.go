package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Payload is one concrete mutation payload, tagged by entity type. The
// replay loop and the search indexer dispatch on the tag instead of
// inspecting raw JSON.
type Payload interface {
	EntityType() EntityType

	// SearchFields returns the title, optional subtitle and free text used
	// to build the derived search index entry for this payload.
	SearchFields() (title, subtitle, text string)
}

// TripPayload describes a trip.
type TripPayload struct {
	Name        string     `json:"name"`
	Destination string     `json:"destination"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

func (TripPayload) EntityType() EntityType { return EntityTrip }
func (p TripPayload) SearchFields() (string, string, string) {
	return p.Name, p.Destination, p.Notes
}

// ActivityPayload describes a scheduled activity within a trip.
type ActivityPayload struct {
	TripID       string     `json:"tripId"`
	Title        string     `json:"title"`
	Category     string     `json:"category,omitempty"`
	StartTime    *time.Time `json:"startTime,omitempty"`
	EndTime      *time.Time `json:"endTime,omitempty"`
	LocationName string     `json:"locationName,omitempty"`
	Latitude     *float64   `json:"latitude,omitempty"`
	Longitude    *float64   `json:"longitude,omitempty"`
	ChecklistID  string     `json:"checklistId,omitempty"`
	Notes        string     `json:"notes,omitempty"`
}

func (ActivityPayload) EntityType() EntityType { return EntityActivity }
func (p ActivityPayload) SearchFields() (string, string, string) {
	return p.Title, p.LocationName, strings.TrimSpace(p.Category + " " + p.Notes)
}

// LodgingPayload describes a place to stay.
type LodgingPayload struct {
	TripID    string     `json:"tripId"`
	Name      string     `json:"name"`
	Address   string     `json:"address,omitempty"`
	CheckIn   *time.Time `json:"checkIn,omitempty"`
	CheckOut  *time.Time `json:"checkOut,omitempty"`
	Latitude  *float64   `json:"latitude,omitempty"`
	Longitude *float64   `json:"longitude,omitempty"`
	Notes     string     `json:"notes,omitempty"`
}

func (LodgingPayload) EntityType() EntityType { return EntityLodging }
func (p LodgingPayload) SearchFields() (string, string, string) {
	return p.Name, p.Address, p.Notes
}

// TransportationPayload describes a leg between locations.
type TransportationPayload struct {
	TripID        string     `json:"tripId"`
	Mode          string     `json:"mode"`
	FromLocation  string     `json:"fromLocation,omitempty"`
	ToLocation    string     `json:"toLocation,omitempty"`
	DepartureTime *time.Time `json:"departureTime,omitempty"`
	ArrivalTime   *time.Time `json:"arrivalTime,omitempty"`
	Notes         string     `json:"notes,omitempty"`
}

func (TransportationPayload) EntityType() EntityType { return EntityTransportation }
func (p TransportationPayload) SearchFields() (string, string, string) {
	return p.Mode, p.FromLocation + " → " + p.ToLocation, p.Notes
}

// JournalEntryPayload describes a journal entry, optionally bound to an
// activity.
type JournalEntryPayload struct {
	TripID     string     `json:"tripId"`
	ActivityID string     `json:"activityId,omitempty"`
	Title      string     `json:"title"`
	Body       string     `json:"body,omitempty"`
	EntryDate  *time.Time `json:"entryDate,omitempty"`
}

func (JournalEntryPayload) EntityType() EntityType { return EntityJournalEntry }
func (p JournalEntryPayload) SearchFields() (string, string, string) {
	return p.Title, "", p.Body
}

// PhotoPayload describes photo metadata; the image bytes themselves live in
// the platform's media store and are out of scope here.
type PhotoPayload struct {
	TripID         string     `json:"tripId"`
	ActivityID     string     `json:"activityId,omitempty"`
	JournalEntryID string     `json:"journalEntryId,omitempty"`
	Caption        string     `json:"caption,omitempty"`
	TakenAt        *time.Time `json:"takenAt,omitempty"`
	Latitude       *float64   `json:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty"`
	StoragePath    string     `json:"storagePath,omitempty"`
}

func (PhotoPayload) EntityType() EntityType { return EntityPhoto }
func (p PhotoPayload) SearchFields() (string, string, string) {
	return p.Caption, "", ""
}

// CompanionPayload describes a travel companion.
type CompanionPayload struct {
	TripID string `json:"tripId"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
}

func (CompanionPayload) EntityType() EntityType { return EntityCompanion }
func (p CompanionPayload) SearchFields() (string, string, string) {
	return p.Name, p.Email, ""
}

// ChecklistPayload describes a checklist.
type ChecklistPayload struct {
	TripID string `json:"tripId"`
	Name   string `json:"name"`
}

func (ChecklistPayload) EntityType() EntityType { return EntityChecklist }
func (p ChecklistPayload) SearchFields() (string, string, string) {
	return p.Name, "", ""
}

// ChecklistItemPayload describes one checklist entry.
type ChecklistItemPayload struct {
	TripID      string `json:"tripId"`
	ChecklistID string `json:"checklistId"`
	Text        string `json:"text"`
	Done        bool   `json:"done"`
}

func (ChecklistItemPayload) EntityType() EntityType { return EntityChecklistItem }
func (p ChecklistItemPayload) SearchFields() (string, string, string) {
	return p.Text, "", ""
}

// DecodePayload unmarshals raw JSON into the concrete payload for the given
// entity type.
func DecodePayload(t EntityType, raw []byte) (Payload, error) {
	var p Payload
	switch t {
	case EntityTrip:
		p = &TripPayload{}
	case EntityActivity:
		p = &ActivityPayload{}
	case EntityLodging:
		p = &LodgingPayload{}
	case EntityTransportation:
		p = &TransportationPayload{}
	case EntityJournalEntry:
		p = &JournalEntryPayload{}
	case EntityPhoto:
		p = &PhotoPayload{}
	case EntityCompanion:
		p = &CompanionPayload{}
	case EntityChecklist:
		p = &ChecklistPayload{}
	case EntityChecklistItem:
		p = &ChecklistItemPayload{}
	default:
		return nil, fmt.Errorf("unknown entity type %q", t)
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return p, nil
}

// EncodePayload marshals a concrete payload back to JSON.
func EncodePayload(p Payload) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.EntityType(), err)
	}
	return raw, nil
}
