package models

import "time"

// IdMapping permanently links a client-generated identifier to its
// server-assigned identifier. Mappings are append-only and never deleted;
// at most one mapping exists per local id.
type IdMapping struct {
	LocalID    string
	ServerID   string
	EntityType EntityType
	CreatedAt  time.Time
}
