package syncengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/travellife/internal/common"
	"github.com/dmitrijs2005/travellife/internal/dbx"
	"github.com/dmitrijs2005/travellife/internal/models"
	"github.com/dmitrijs2005/travellife/internal/repositories/conflicts"
	"github.com/dmitrijs2005/travellife/internal/repositories/outbox"
	"github.com/dmitrijs2005/travellife/internal/repositories/records"
	"github.com/dmitrijs2005/travellife/internal/repositories/searchindex"
)

// ResolveConflict applies the user's decision to a pending conflict. The
// conflict record, the local copy and the blocked operations are updated in
// one transaction; the conflict itself is frozen and never reopened.
//
// merged is required for ResolutionMerge and ignored otherwise.
func (e *Engine) ResolveConflict(ctx context.Context, conflictID int64, res models.Resolution, merged []byte) error {
	c, err := e.conflicts.GetByID(ctx, conflictID)
	if err != nil {
		return err
	}
	if c.Status == models.ConflictResolved {
		return common.ErrConflictResolved
	}
	if res == models.ResolutionMerge && len(merged) == 0 {
		return fmt.Errorf("merge resolution requires a merged payload")
	}

	now := e.now()
	err = dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		cf := conflicts.NewSQLiteRepository(tx)
		ob := outbox.NewSQLiteRepository(tx)
		recs := records.NewSQLiteRepository(tx)
		si := searchindex.NewSQLiteRepository(tx)

		if err := cf.MarkResolved(ctx, conflictID, res, now); err != nil {
			return err
		}
		blocked, err := ob.BlockedByConflict(ctx, conflictID)
		if err != nil {
			return err
		}

		switch res {
		case models.ResolutionServer:
			return e.resolveServer(ctx, c, blocked, recs, ob, si, now)
		case models.ResolutionLocal:
			return e.resolveLocal(ctx, c, blocked, ob, now)
		case models.ResolutionMerge:
			return e.resolveMerge(ctx, c, blocked, merged, recs, ob, si, now)
		default:
			return fmt.Errorf("unknown resolution %q", res)
		}
	})
	if err != nil {
		return err
	}

	e.log.Info(ctx, "conflict resolved",
		"conflict_id", conflictID, "entity_type", c.EntityType,
		"entity_id", c.EntityID, "resolution", res)
	return nil
}

// resolveServer discards the rejected local mutation and adopts the server
// copy as the new local truth.
func (e *Engine) resolveServer(ctx context.Context, c *models.SyncConflict, blocked []*models.SyncOperation,
	recs records.Repository, ob outbox.Repository, si searchindex.Repository, now time.Time) error {
	for _, op := range blocked {
		if err := ob.Delete(ctx, op.ID); err != nil {
			return err
		}
	}

	if len(c.ServerData) == 0 {
		// the server side of the conflict was a delete
		if err := recs.Delete(ctx, c.EntityType, c.EntityID); err != nil {
			return err
		}
		return si.DeleteByEntity(ctx, c.EntityType, c.EntityID)
	}

	rec := &models.OfflineRecord{
		ID:            c.EntityID,
		EntityType:    c.EntityType,
		TripID:        c.TripID,
		Data:          c.ServerData,
		Version:       c.ServerVersion,
		SyncedVersion: c.ServerVersion,
		LastSync:      now,
	}
	if existing, err := recs.GetByID(ctx, c.EntityType, c.EntityID); err == nil {
		rec.LocalID = existing.LocalID
	} else if !errors.Is(err, common.ErrorNotFound) {
		return err
	}
	if err := recs.Upsert(ctx, rec); err != nil {
		return err
	}
	if entry := models.BuildSearchIndexEntry(rec, now); entry != nil {
		return si.Upsert(ctx, entry)
	}
	return nil
}

// resolveLocal replays the local mutation with the version check disabled,
// rebased on the server version seen at detection time.
func (e *Engine) resolveLocal(ctx context.Context, c *models.SyncConflict, blocked []*models.SyncOperation,
	ob outbox.Repository, now time.Time) error {
	if len(blocked) == 0 {
		_, err := ob.Enqueue(ctx, &models.SyncOperation{
			Op:          models.OpUpdate,
			EntityType:  c.EntityType,
			EntityID:    c.EntityID,
			TripID:      c.TripID,
			Payload:     c.LocalData,
			Timestamp:   now,
			BaseVersion: c.ServerVersion,
			Force:       true,
		})
		return err
	}
	for _, op := range blocked {
		if err := ob.Requeue(ctx, op.ID, c.ServerVersion, true); err != nil {
			return err
		}
	}
	return nil
}

// resolveMerge stores the caller-merged payload as a fresh local change
// based on the server version.
func (e *Engine) resolveMerge(ctx context.Context, c *models.SyncConflict, blocked []*models.SyncOperation,
	merged []byte, recs records.Repository, ob outbox.Repository, si searchindex.Repository, now time.Time) error {
	if err := recs.UpdateData(ctx, c.EntityType, c.EntityID, merged); err != nil {
		return err
	}

	if len(blocked) == 0 {
		_, err := ob.Enqueue(ctx, &models.SyncOperation{
			Op:          models.OpUpdate,
			EntityType:  c.EntityType,
			EntityID:    c.EntityID,
			TripID:      c.TripID,
			Payload:     merged,
			Timestamp:   now,
			BaseVersion: c.ServerVersion,
		})
		if err != nil {
			return err
		}
	} else {
		for i, op := range blocked {
			if i == 0 {
				if err := ob.UpdatePayload(ctx, op.ID, merged); err != nil {
					return err
				}
			}
			if err := ob.Requeue(ctx, op.ID, c.ServerVersion, false); err != nil {
				return err
			}
		}
	}

	if rec, err := recs.GetByID(ctx, c.EntityType, c.EntityID); err == nil {
		if entry := models.BuildSearchIndexEntry(rec, now); entry != nil {
			return si.Upsert(ctx, entry)
		}
	}
	return nil
}
