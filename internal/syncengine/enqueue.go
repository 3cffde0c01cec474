package syncengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/travellife/internal/common"
	"github.com/dmitrijs2005/travellife/internal/dbx"
	"github.com/dmitrijs2005/travellife/internal/models"
	"github.com/dmitrijs2005/travellife/internal/repositories/outbox"
	"github.com/dmitrijs2005/travellife/internal/repositories/records"
	"github.com/dmitrijs2005/travellife/internal/repositories/searchindex"
)

// CreateEntity stores a new entity locally under a generated UUID and queues
// a create operation. The returned id is provisional: once the server
// confirms the create, reconciliation rewrites it everywhere.
func (e *Engine) CreateEntity(ctx context.Context, p models.Payload) (string, error) {
	t := p.EntityType()
	raw, err := models.EncodePayload(p)
	if err != nil {
		return "", err
	}

	localID := uuid.NewString()
	tripID := payloadTripID(t, raw, localID)
	now := e.now()

	err = dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		recs := records.NewSQLiteRepository(tx)
		ob := outbox.NewSQLiteRepository(tx)
		si := searchindex.NewSQLiteRepository(tx)

		rec := &models.OfflineRecord{
			ID:         localID,
			EntityType: t,
			TripID:     tripID,
			LocalID:    localID,
			Data:       raw,
			Version:    1,
		}
		if err := recs.Upsert(ctx, rec); err != nil {
			return err
		}

		_, err := ob.Enqueue(ctx, &models.SyncOperation{
			Op:         models.OpCreate,
			EntityType: t,
			EntityID:   localID,
			LocalID:    localID,
			TripID:     tripID,
			Payload:    raw,
			Timestamp:  now,
		})
		if err != nil {
			return err
		}

		if entry := models.BuildSearchIndexEntry(rec, now); entry != nil {
			return si.Upsert(ctx, entry)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("create %s: %w", t, err)
	}

	e.log.Debug(ctx, "entity created locally", "entity_type", t, "local_id", localID)
	return localID, nil
}

// UpdateEntity applies a local edit and queues an update operation. When an
// unsent create for the same entity is still queued, the edit is merged into
// that create instead of producing a second network call.
func (e *Engine) UpdateEntity(ctx context.Context, t models.EntityType, id string, p models.Payload) error {
	if p.EntityType() != t {
		return fmt.Errorf("payload type %s does not match %s", p.EntityType(), t)
	}
	raw, err := models.EncodePayload(p)
	if err != nil {
		return err
	}

	rec, err := e.records.GetByID(ctx, t, id)
	if err != nil {
		return err
	}
	now := e.now()

	err = dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		recs := records.NewSQLiteRepository(tx)
		ob := outbox.NewSQLiteRepository(tx)
		si := searchindex.NewSQLiteRepository(tx)

		if err := recs.UpdateData(ctx, t, rec.ID, raw); err != nil {
			return err
		}

		coalesced := false
		if rec.LocalID != "" {
			create, err := ob.FindQueuedCreate(ctx, t, rec.LocalID)
			switch {
			case err == nil:
				if err := ob.UpdatePayload(ctx, create.ID, raw); err != nil {
					return err
				}
				coalesced = true
			case !errors.Is(err, common.ErrorNotFound):
				return err
			}
		}
		if !coalesced {
			_, err := ob.Enqueue(ctx, &models.SyncOperation{
				Op:          models.OpUpdate,
				EntityType:  t,
				EntityID:    rec.ID,
				LocalID:     rec.LocalID,
				TripID:      rec.TripID,
				Payload:     raw,
				Timestamp:   now,
				BaseVersion: rec.SyncedVersion,
			})
			if err != nil {
				return err
			}
		}

		updated := *rec
		updated.Data = raw
		if entry := models.BuildSearchIndexEntry(&updated, now); entry != nil {
			return si.Upsert(ctx, entry)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", t, id, err)
	}
	return nil
}

// DeleteEntity queues a delete operation. An entity created offline and
// never confirmed by the server is cancelled locally instead: its queued
// create (and any merged edits) are dropped and nothing reaches the network.
func (e *Engine) DeleteEntity(ctx context.Context, t models.EntityType, id string) error {
	rec, err := e.records.GetByID(ctx, t, id)
	if err != nil {
		return err
	}
	now := e.now()

	err = dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		recs := records.NewSQLiteRepository(tx)
		ob := outbox.NewSQLiteRepository(tx)
		si := searchindex.NewSQLiteRepository(tx)

		if rec.LocalID != "" {
			_, err := ob.FindQueuedCreate(ctx, t, rec.LocalID)
			switch {
			case err == nil:
				if err := ob.DeleteForLineage(ctx, t, rec.LocalID); err != nil {
					return err
				}
				if err := recs.Delete(ctx, t, rec.ID); err != nil {
					return err
				}
				return si.DeleteByEntity(ctx, t, rec.ID)
			case !errors.Is(err, common.ErrorNotFound):
				return err
			}
		}

		_, err := ob.Enqueue(ctx, &models.SyncOperation{
			Op:          models.OpDelete,
			EntityType:  t,
			EntityID:    rec.ID,
			LocalID:     rec.LocalID,
			TripID:      rec.TripID,
			Timestamp:   now,
			BaseVersion: rec.SyncedVersion,
		})
		if err != nil {
			return err
		}
		// the record itself stays until the server confirms the delete
		return si.DeleteByEntity(ctx, t, rec.ID)
	})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", t, id, err)
	}
	return nil
}

// payloadTripID extracts the trip scope from an encoded payload. A trip is
// its own scope.
func payloadTripID(t models.EntityType, raw []byte, selfID string) string {
	if t == models.EntityTrip {
		return selfID
	}
	var probe struct {
		TripID string `json:"tripId"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	return probe.TripID
}
