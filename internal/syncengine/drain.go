package syncengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/travellife/internal/common"
	"github.com/dmitrijs2005/travellife/internal/dbx"
	"github.com/dmitrijs2005/travellife/internal/models"
	"github.com/dmitrijs2005/travellife/internal/repositories/conflicts"
	"github.com/dmitrijs2005/travellife/internal/repositories/idmap"
	"github.com/dmitrijs2005/travellife/internal/repositories/outbox"
	"github.com/dmitrijs2005/travellife/internal/repositories/records"
	"github.com/dmitrijs2005/travellife/internal/repositories/searchindex"
	"github.com/dmitrijs2005/travellife/internal/serverapi"
)

// ErrDrainInProgress is returned when a drain pass is already running.
var ErrDrainInProgress = errors.New("drain already in progress")

// DrainResult summarizes one drain pass.
type DrainResult struct {
	Applied int // confirmed by the server and removed from the queue
	Retried int // transient failures left queued with backoff
	Blocked int // parked behind a newly detected or existing conflict
	Failed  int // taken out of rotation permanently
}

type drainCounters struct {
	applied atomic.Int64
	retried atomic.Int64
	blocked atomic.Int64
	failed  atomic.Int64
}

// Drain replays every eligible queued operation. Operations sharing an
// entity lineage are applied strictly in enqueue order; independent lineages
// are drained concurrently. Only one drain pass runs at a time.
func (e *Engine) Drain(ctx context.Context) (*DrainResult, error) {
	if !e.draining.CompareAndSwap(false, true) {
		return nil, ErrDrainInProgress
	}
	defer e.draining.Store(false)

	ops, err := e.outbox.Pending(ctx)
	if err != nil {
		return nil, err
	}

	// lanes are keyed by trip scope, not bare entity lineage: a child's
	// create may reference a provisional trip id, so everything in one trip
	// drains in enqueue order while independent trips proceed concurrently
	lanes := map[string][]*models.SyncOperation{}
	var order []string
	for _, op := range ops {
		key := laneKey(op)
		if _, seen := lanes[key]; !seen {
			order = append(order, key)
		}
		lanes[key] = append(lanes[key], op)
	}

	var c drainCounters
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Parallelism)
	for _, key := range order {
		lane := lanes[key]
		g.Go(func() error {
			return e.drainLineage(gctx, lane, &c)
		})
	}
	err = g.Wait()

	res := &DrainResult{
		Applied: int(c.applied.Load()),
		Retried: int(c.retried.Load()),
		Blocked: int(c.blocked.Load()),
		Failed:  int(c.failed.Load()),
	}

	e.mu.Lock()
	if err == nil && res.Retried == 0 && res.Failed == 0 {
		e.lastSyncTime = e.now()
		if res.Blocked == 0 {
			e.lastError = ""
		}
	}
	e.mu.Unlock()

	e.log.Info(ctx, "drain pass finished",
		"applied", res.Applied, "retried", res.Retried,
		"blocked", res.Blocked, "failed", res.Failed)
	return res, err
}

func laneKey(op *models.SyncOperation) string {
	if op.TripID != "" {
		return "trip:" + op.TripID
	}
	return op.LineageKey()
}

// drainLineage applies one lineage's operations in order, stopping at the
// first operation that cannot proceed. A returned error is a local failure
// (storage or cancellation), never a server rejection.
func (e *Engine) drainLineage(ctx context.Context, lane []*models.SyncOperation, c *drainCounters) error {
	now := e.now()
	for _, stale := range lane {
		// refresh: an earlier operation in this lineage may have rewritten
		// ids or payloads, or coalescing may have removed it entirely
		op, err := e.outbox.Get(ctx, stale.ID)
		if errors.Is(err, common.ErrorNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if op.Status == models.OpBlocked {
			return nil
		}
		if !op.NextAttemptAt.IsZero() && op.NextAttemptAt.After(now) {
			return nil
		}

		err = e.apply(ctx, op)
		if err == nil {
			c.applied.Add(1)
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if ce, ok := serverapi.AsConflict(err); ok {
			if err := e.openConflict(ctx, op, ce); err != nil {
				return err
			}
			c.blocked.Add(1)
			return nil
		}

		if serverapi.IsRetryable(err) {
			rc := op.RetryCount + 1
			if rc > e.cfg.MaxRetries {
				e.log.Error(ctx, "operation failed permanently",
					"op_id", op.ID, "op", op.Op, "entity_type", op.EntityType,
					"entity_id", op.EntityID, "error", err)
				if err := e.outbox.MarkFailed(ctx, op.ID, err.Error()); err != nil {
					return err
				}
				e.setLastError(err.Error())
				c.failed.Add(1)
			} else {
				next := now.Add(e.backoffDelay(rc))
				if err := e.outbox.MarkRetry(ctx, op.ID, rc, next, err.Error()); err != nil {
					return err
				}
				e.setLastError(err.Error())
				c.retried.Add(1)
			}
			return nil
		}

		// fatal server rejection: out of rotation, surfaced to the user
		e.log.Error(ctx, "operation rejected by server",
			"op_id", op.ID, "op", op.Op, "entity_type", op.EntityType,
			"entity_id", op.EntityID, "error", err)
		if err := e.outbox.MarkFailed(ctx, op.ID, err.Error()); err != nil {
			return err
		}
		e.setLastError(err.Error())
		c.failed.Add(1)
		return nil
	}
	return nil
}

func (e *Engine) apply(ctx context.Context, op *models.SyncOperation) error {
	switch op.Op {
	case models.OpCreate:
		srv, err := e.api.Create(ctx, op.EntityType, op.LocalID, op.Payload)
		if err != nil {
			return err
		}
		return e.confirmCreate(ctx, op, srv)
	case models.OpUpdate:
		srv, err := e.api.Update(ctx, op.EntityType, op.EntityID, op.Payload, op.BaseVersion, op.Force)
		if err != nil {
			return err
		}
		return e.confirmUpdate(ctx, op, srv)
	case models.OpDelete:
		if err := e.api.Delete(ctx, op.EntityType, op.EntityID, op.BaseVersion, op.Force); err != nil {
			return err
		}
		return e.confirmDelete(ctx, op)
	default:
		return common.ErrSyncFatal
	}
}

// confirmCreate records the server's identity for a locally created entity
// and rewrites every reference to the provisional id, all inside one
// transaction so a crash can never leave the two ids mixed.
func (e *Engine) confirmCreate(ctx context.Context, op *models.SyncOperation, srv *serverapi.ServerRecord) error {
	now := e.now()
	return dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		recs := records.NewSQLiteRepository(tx)
		ob := outbox.NewSQLiteRepository(tx)
		si := searchindex.NewSQLiteRepository(tx)

		if srv.ID != op.LocalID {
			im := idmap.NewSQLiteRepository(tx)
			// a replayed create (confirmed server-side, local commit lost)
			// finds its mapping already in place; the rewrite already ran
			if existing, err := im.GetByLocalID(ctx, op.LocalID); err == nil {
				if existing.ServerID != srv.ID {
					return fmt.Errorf("local id %s already mapped to %s, server returned %s",
						op.LocalID, existing.ServerID, srv.ID)
				}
				if err := recs.MarkSynced(ctx, op.EntityType, srv.ID, srv.Version, now); err != nil {
					return err
				}
				if err := rebaseQueued(ctx, ob, op, srv.ID, srv.Version); err != nil {
					return err
				}
				return ob.Delete(ctx, op.ID)
			} else if !errors.Is(err, common.ErrorNotFound) {
				return err
			}
			if err := im.Insert(ctx, &models.IdMapping{
				LocalID:    op.LocalID,
				ServerID:   srv.ID,
				EntityType: op.EntityType,
				CreatedAt:  now,
			}); err != nil {
				return err
			}
			if err := recs.RewriteID(ctx, op.EntityType, op.LocalID, srv.ID); err != nil {
				return err
			}
			if err := rewriteReferences(ctx, recs, ob, op.EntityType, op.LocalID, srv.ID); err != nil {
				return err
			}
			if err := ob.RewriteEntityID(ctx, op.EntityType, op.LocalID, srv.ID); err != nil {
				return err
			}
			if err := si.RewriteEntityID(ctx, op.EntityType, op.LocalID, srv.ID); err != nil {
				return err
			}
			if op.EntityType == models.EntityTrip {
				if err := recs.RewriteTripID(ctx, op.LocalID, srv.ID); err != nil {
					return err
				}
				if err := ob.RewriteTripID(ctx, op.LocalID, srv.ID); err != nil {
					return err
				}
				if err := si.RewriteTripID(ctx, op.LocalID, srv.ID); err != nil {
					return err
				}
			}
		}

		if err := recs.MarkSynced(ctx, op.EntityType, srv.ID, srv.Version, now); err != nil {
			return err
		}
		if err := rebaseQueued(ctx, ob, op, srv.ID, srv.Version); err != nil {
			return err
		}
		return ob.Delete(ctx, op.ID)
	})
}

func (e *Engine) confirmUpdate(ctx context.Context, op *models.SyncOperation, srv *serverapi.ServerRecord) error {
	now := e.now()
	return dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		recs := records.NewSQLiteRepository(tx)
		ob := outbox.NewSQLiteRepository(tx)
		if err := recs.MarkSynced(ctx, op.EntityType, op.EntityID, srv.Version, now); err != nil {
			return err
		}
		if err := rebaseQueued(ctx, ob, op, op.EntityID, srv.Version); err != nil {
			return err
		}
		return ob.Delete(ctx, op.ID)
	})
}

// rebaseQueued moves the entity's still-queued operations onto the version
// the server just confirmed. Without this, a second offline edit would carry
// the pre-confirm base version and bounce off its own predecessor as a 409.
func rebaseQueued(ctx context.Context, ob outbox.Repository, confirmed *models.SyncOperation, entityID string, version int64) error {
	later, err := ob.ForEntity(ctx, confirmed.EntityType, entityID)
	if err != nil {
		return err
	}
	for _, next := range later {
		if next.ID == confirmed.ID || next.Status != models.OpQueued {
			continue
		}
		if err := ob.Requeue(ctx, next.ID, version, next.Force); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) confirmDelete(ctx context.Context, op *models.SyncOperation) error {
	return dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		recs := records.NewSQLiteRepository(tx)
		ob := outbox.NewSQLiteRepository(tx)
		si := searchindex.NewSQLiteRepository(tx)
		if err := recs.Delete(ctx, op.EntityType, op.EntityID); err != nil {
			return err
		}
		if err := si.DeleteByEntity(ctx, op.EntityType, op.EntityID); err != nil {
			return err
		}
		return ob.Delete(ctx, op.ID)
	})
}

// openConflict records a version conflict and parks the rejected operation
// behind it. When the entity already has a pending conflict the operation
// joins it instead of opening a second one.
func (e *Engine) openConflict(ctx context.Context, op *models.SyncOperation, ce *serverapi.ConflictError) error {
	now := e.now()

	localData := op.Payload
	localVersion := op.BaseVersion
	if rec, err := e.records.GetByID(ctx, op.EntityType, op.EntityID); err == nil {
		localVersion = rec.Version
		if len(localData) == 0 {
			localData = rec.Data
		}
	}

	return dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		cf := conflicts.NewSQLiteRepository(tx)
		ob := outbox.NewSQLiteRepository(tx)

		existing, err := cf.PendingForEntity(ctx, op.EntityType, op.EntityID)
		if err == nil {
			return ob.MarkBlocked(ctx, op.ID, existing.ID)
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return err
		}

		id, err := cf.Create(ctx, &models.SyncConflict{
			EntityType:      op.EntityType,
			EntityID:        op.EntityID,
			TripID:          op.TripID,
			LocalData:       localData,
			ServerData:      ce.Server.Data,
			LocalVersion:    localVersion,
			ServerVersion:   ce.Server.Version,
			LocalTimestamp:  op.Timestamp,
			ServerTimestamp: ce.Server.UpdatedAt,
			CreatedAt:       now,
		})
		if err != nil {
			return err
		}
		e.log.Warn(ctx, "sync conflict detected",
			"conflict_id", id, "entity_type", op.EntityType, "entity_id", op.EntityID,
			"local_version", localVersion, "server_version", ce.Server.Version)
		return ob.MarkBlocked(ctx, op.ID, id)
	})
}

// backoffDelay returns the capped exponential delay before the given attempt.
func (e *Engine) backoffDelay(attempt int) time.Duration {
	b := retry.WithCappedDuration(e.cfg.BackoffCap, retry.NewExponential(e.cfg.BackoffBase))
	var d time.Duration
	for i := 0; i < attempt; i++ {
		next, stop := b.Next()
		if stop {
			break
		}
		d = next
	}
	return d
}

// rewriteReferences repoints payload fields that referenced a provisional
// id. Only the registered reference fields of each entity type are touched.
func rewriteReferences(ctx context.Context, recs records.Repository, ob outbox.Repository, created models.EntityType, localID, serverID string) error {
	field := models.ReferenceFieldFor(created)
	if field == "" {
		return nil
	}

	all, err := recs.All(ctx)
	if err != nil {
		return err
	}
	for i := range all {
		rec := &all[i]
		if !models.References(rec.EntityType, field) {
			continue
		}
		data, changed := rewriteJSONField(rec.Data, field, localID, serverID)
		if !changed {
			continue
		}
		rec.Data = data
		if err := recs.Upsert(ctx, rec); err != nil {
			return err
		}
	}

	pending, err := ob.Pending(ctx)
	if err != nil {
		return err
	}
	for _, op := range pending {
		if len(op.Payload) == 0 || !models.References(op.EntityType, field) {
			continue
		}
		payload, changed := rewriteJSONField(op.Payload, field, localID, serverID)
		if !changed {
			continue
		}
		if err := ob.UpdatePayload(ctx, op.ID, payload); err != nil {
			return err
		}
	}
	return nil
}

// rewriteJSONField replaces a single string field when it equals from.
func rewriteJSONField(raw []byte, field, from, to string) ([]byte, bool) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return raw, false
	}
	v, ok := m[field].(string)
	if !ok || v != from {
		return raw, false
	}
	m[field] = to
	out, err := json.Marshal(m)
	if err != nil {
		return raw, false
	}
	return out, true
}
