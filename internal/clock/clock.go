// Package clock abstracts time for timer-driven components so tests can
// advance virtual time deterministically.
package clock

import (
	"sync"
	"time"
)

// Clock tells the time and hands out tickers.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker is the subset of time.Ticker the playback and refresh loops need.
type Ticker interface {
	C() <-chan time.Time
	Reset(d time.Duration)
	Stop()
}

// NewReal returns a Clock backed by the system clock.
func NewReal() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (rt *realTicker) C() <-chan time.Time { return rt.t.C }

func (rt *realTicker) Reset(d time.Duration) { rt.t.Reset(d) }

func (rt *realTicker) Stop() { rt.t.Stop() }

// Fake is a manually-advanced Clock for tests.
type Fake struct {
	mu      sync.Mutex
	current time.Time
	tickers []*FakeTicker
}

// NewFake returns a Fake clock starting at t.
func NewFake(t time.Time) *Fake {
	return &Fake{current: t}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// NewTicker returns a ticker that fires only when the test calls Tick.
func (f *Fake) NewTicker(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	ft := &FakeTicker{interval: d, ch: make(chan time.Time, 1)}
	f.tickers = append(f.tickers, ft)
	return ft
}

// Advance moves the fake time forward without firing tickers.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}

// Tickers returns every ticker handed out so far, in creation order.
func (f *Fake) Tickers() []*FakeTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*FakeTicker, len(f.tickers))
	copy(out, f.tickers)
	return out
}

// FakeTicker fires on demand via Tick.
type FakeTicker struct {
	mu       sync.Mutex
	interval time.Duration
	stopped  bool
	ch       chan time.Time
}

// C returns the tick channel.
func (ft *FakeTicker) C() <-chan time.Time { return ft.ch }

// Reset records the new interval; pending state is unchanged, matching
// time.Ticker.Reset semantics closely enough for the loops under test.
func (ft *FakeTicker) Reset(d time.Duration) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.interval = d
	ft.stopped = false
}

// Stop marks the ticker stopped. Tick becomes a no-op.
func (ft *FakeTicker) Stop() {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.stopped = true
}

// Interval returns the most recently configured interval.
func (ft *FakeTicker) Interval() time.Duration {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.interval
}

// Stopped reports whether Stop was called after the last Reset.
func (ft *FakeTicker) Stopped() bool {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.stopped
}

// Tick delivers one tick, blocking until the consumer receives it.
// Ticks on a stopped ticker are dropped.
func (ft *FakeTicker) Tick(t time.Time) {
	ft.mu.Lock()
	if ft.stopped {
		ft.mu.Unlock()
		return
	}
	ft.mu.Unlock()
	ft.ch <- t
}
