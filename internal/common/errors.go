// Package common defines shared constants and sentinel errors used across
// the TravelLife sync engine. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Sync-level errors.
	ErrVersionConflict = errors.New("version conflict")
	ErrSyncRetryable   = errors.New("retryable sync failure")
	ErrSyncFatal       = errors.New("fatal sync failure")
	ErrConflictPending = errors.New("conflict pending for entity")
	ErrConflictResolved = errors.New("conflict already resolved")

	// Storage / platform errors.
	ErrUnavailable   = errors.New("storage unavailable")
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// Server errors.
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorInternal     = errors.New("internal error")
)
