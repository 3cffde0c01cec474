package serverapi

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/travellife/internal/common"
)

// ConflictError carries the server's current record alongside the
// 409-equivalent rejection, so the engine can open a SyncConflict without a
// second round trip.
type ConflictError struct {
	Server ServerRecord
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("server copy at version %d: %v", e.Server.Version, common.ErrVersionConflict)
}

func (e *ConflictError) Unwrap() error { return common.ErrVersionConflict }

// AsConflict extracts a ConflictError if err carries one.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsRetryable reports whether the failure is transient (network error or
// 5xx) and the operation should stay queued with backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, common.ErrSyncRetryable)
}
