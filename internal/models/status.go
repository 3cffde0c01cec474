package models

import "time"

// EngineStatus summarizes the engine state for the UI.
type EngineStatus string

const (
	StatusSynced  EngineStatus = "synced"
	StatusPending EngineStatus = "pending"
	StatusSyncing EngineStatus = "syncing"
	StatusError   EngineStatus = "error"
	StatusOffline EngineStatus = "offline"
)

// SyncStatus is the answer to "is my data safe yet?".
type SyncStatus struct {
	PendingCount  int
	ConflictCount int
	FailedCount   int
	Status        EngineStatus
	LastSyncTime  time.Time
	LastError     string
}
