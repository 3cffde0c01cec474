package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/travellife/internal/common"
	"github.com/dmitrijs2005/travellife/internal/netx"
	"github.com/dmitrijs2005/travellife/internal/syncengine"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch connectivity and drain the queue until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		err := current.runLoop(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

// runLoop is the long-running client mode: probe the server, drain whenever
// connectivity comes back, sweep the queue on an interval while online so
// backed-off retries get their next attempt, and keep the warm-start
// snapshot in the cache store fresh.
func (a *app) runLoop(ctx context.Context) error {
	if raw, err := a.cache.RestoreClient(ctx); err == nil {
		a.engine.ImportState(raw)
	} else if !errors.Is(err, common.ErrorNotFound) {
		a.log.Warn(ctx, "warm-start snapshot unavailable", "error", err)
	}

	drain := func(ctx context.Context) {
		res, err := a.engine.Drain(ctx)
		if err != nil {
			if !errors.Is(err, syncengine.ErrDrainInProgress) && ctx.Err() == nil {
				a.log.Error(ctx, "drain pass failed", "error", err)
			}
			return
		}
		if res.Applied > 0 || res.Failed > 0 || res.Blocked > 0 {
			a.log.Info(ctx, "queue drained", "applied", res.Applied,
				"retried", res.Retried, "blocked", res.Blocked, "failed", res.Failed)
		}
		a.cache.TryPersist(ctx, a.engine.ExportState())
	}

	prober := netx.NewProber(a.api, a.cfg.PingInterval, a.log,
		func(ctx context.Context) {
			a.engine.SetOnline(true)
			drain(ctx)
		},
		func(ctx context.Context) {
			a.engine.SetOnline(false)
		})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return prober.Run(gctx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Sync.DrainInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if prober.Online() {
					drain(gctx)
				}
			}
		}
	})
	return g.Wait()
}
