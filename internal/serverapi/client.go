// Package serverapi talks to the TravelLife backend. The engine treats the
// backend as an external collaborator: REST-like endpoints accepting
// create/update/delete payloads and returning the server's canonical record,
// including its assigned id and version.
package serverapi

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/travellife/internal/models"
)

// ServerRecord is the server's canonical copy of an entity, returned on
// every successful mutation and inside 409 responses.
type ServerRecord struct {
	ID        string          `json:"id"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Data      json.RawMessage `json:"data"`
}

// Client is the engine's view of the Server API.
type Client interface {
	// Ping reports server reachability; used by the connectivity probe.
	Ping(ctx context.Context) error

	// Create submits a new entity. clientID is the locally generated UUID;
	// the server uses it as an idempotency key, so replaying a confirmed
	// create returns the already-assigned record instead of a duplicate.
	Create(ctx context.Context, t models.EntityType, clientID string, payload []byte) (*ServerRecord, error)

	// Update submits changed fields against baseVersion. A *ConflictError
	// is returned when the server's copy moved past baseVersion, unless
	// force is set.
	Update(ctx context.Context, t models.EntityType, id string, payload []byte, baseVersion int64, force bool) (*ServerRecord, error)

	// Delete removes an entity against baseVersion, with the same conflict
	// semantics as Update. Deleting an already deleted entity succeeds.
	Delete(ctx context.Context, t models.EntityType, id string, baseVersion int64, force bool) error
}
