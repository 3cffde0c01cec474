// Package netx watches server reachability. The engine itself never polls;
// it reacts to the prober's offline→online transitions by draining the
// mutation queue.
package netx

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/travellife/internal/logging"
)

// Pinger is the probe target; serverapi.Client satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Prober pings the server on an interval and reports transitions.
type Prober struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	log      logging.Logger

	// onOnline fires on every offline→online transition, including the
	// first successful probe; onOffline is its mirror image
	onOnline  func(ctx context.Context)
	onOffline func(ctx context.Context)

	online atomic.Bool
	known  atomic.Bool
}

// NewProber builds a Prober. Either callback may be nil.
func NewProber(p Pinger, interval time.Duration, log logging.Logger, onOnline, onOffline func(ctx context.Context)) *Prober {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Prober{
		pinger:    p,
		interval:  interval,
		timeout:   interval,
		log:       log.With("component", "netx"),
		onOnline:  onOnline,
		onOffline: onOffline,
	}
}

// Online reports the last probe result; false until the first probe ran.
func (p *Prober) Online() bool {
	return p.online.Load() && p.known.Load()
}

// CheckNow runs one probe immediately and returns the result.
func (p *Prober) CheckNow(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err := p.pinger.Ping(pctx)

	wasKnown := p.known.Swap(true)
	wasOnline := p.online.Swap(err == nil)

	if err != nil {
		if wasOnline || !wasKnown {
			p.log.Warn(ctx, "server unreachable", "error", err)
			if p.onOffline != nil {
				p.onOffline(ctx)
			}
		}
		return false
	}
	if !wasOnline || !wasKnown {
		p.log.Info(ctx, "server reachable")
		if p.onOnline != nil {
			p.onOnline(ctx)
		}
	}
	return true
}

// Run probes until the context is cancelled. The first probe happens
// immediately, not one interval in.
func (p *Prober) Run(ctx context.Context) error {
	p.CheckNow(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.CheckNow(ctx)
		}
	}
}
