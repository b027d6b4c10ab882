// Package refresh runs a periodic refetch loop with overlap protection.
package refresh

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/openfleet/tracking-backend-go/internal/clock"
)

// DefaultInterval is the auto-refresh cadence.
const DefaultInterval = 60 * time.Second

// Func performs one refresh pass.
type Func func(ctx context.Context)

// Refresher invokes a refresh function on a fixed cadence. A tick that
// lands while the previous pass is still running is skipped, not
// queued, so slow passes never pile up.
type Refresher struct {
	interval time.Duration
	clk      clock.Clock
	fn       Func

	busy    atomic.Bool
	skipped atomic.Uint64

	mu   sync.Mutex
	last time.Time
	done chan struct{}

	logger *log.Entry
}

// New builds a stopped refresher. Intervals of zero or less fall back
// to the default.
func New(interval time.Duration, clk clock.Clock, fn Func) *Refresher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Refresher{
		interval: interval,
		clk:      clk,
		fn:       fn,
		logger:   log.WithField("component", "refresher"),
	}
}

// Start launches the loop. A second Start without a Stop is a no-op.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	if r.done != nil {
		r.mu.Unlock()
		return
	}
	done := make(chan struct{})
	r.done = done
	r.mu.Unlock()

	ticker := r.clk.NewTicker(r.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C():
				r.Refresh(ctx)
			}
		}
	}()
}

// Stop halts the loop. An in-flight pass finishes on its own.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done != nil {
		close(r.done)
		r.done = nil
	}
}

// Refresh runs one pass immediately. Returns false when a pass is
// already in flight and this one was skipped.
func (r *Refresher) Refresh(ctx context.Context) bool {
	if !r.busy.CompareAndSwap(false, true) {
		r.skipped.Add(1)
		r.logger.Debug("refresh already in flight, tick skipped")
		return false
	}
	defer r.busy.Store(false)

	r.fn(ctx)

	r.mu.Lock()
	r.last = r.clk.Now()
	r.mu.Unlock()
	return true
}

// LastRefresh reports when the last completed pass finished. Zero until
// the first pass completes.
func (r *Refresher) LastRefresh() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Skipped reports how many passes were dropped due to overlap.
func (r *Refresher) Skipped() uint64 {
	return r.skipped.Load()
}
