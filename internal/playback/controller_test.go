package playback

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfleet/tracking-backend-go/internal/clock"
	"github.com/openfleet/tracking-backend-go/internal/models"
)

type recordingObserver struct {
	mu      sync.Mutex
	moves   []int
	cleared int
	signal  chan struct{}
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{signal: make(chan struct{}, 128)}
}

func (o *recordingObserver) PlayheadMoved(_ string, index int, _ models.HistoryPoint) {
	o.mu.Lock()
	o.moves = append(o.moves, index)
	o.mu.Unlock()
	o.signal <- struct{}{}
}

func (o *recordingObserver) SnapshotCleared(string) {
	o.mu.Lock()
	o.cleared++
	o.mu.Unlock()
	o.signal <- struct{}{}
}

func (o *recordingObserver) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-o.signal:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for observer event %d of %d", i+1, n)
		}
	}
}

func (o *recordingObserver) indexes() []int {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]int, len(o.moves))
	copy(out, o.moves)
	return out
}

func (o *recordingObserver) clearedCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cleared
}

func testRoute(n int) *models.Route {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	pts := make([]models.HistoryPoint, n)
	for i := range pts {
		pts[i] = models.HistoryPoint{
			VehicleID: "T1",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Location:  models.LatLng{Lat: -3.43 + float64(i)*0.001, Lng: 115.56},
		}
	}
	return &models.Route{VehicleID: "T1", Points: pts}
}

func newTestController(n int) (*Controller, *clock.Fake, *recordingObserver) {
	fake := clock.NewFake(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	obs := newRecordingObserver()
	return NewController(testRoute(n), fake, obs), fake, obs
}

func onlyTicker(t *testing.T, fake *clock.Fake) *clock.FakeTicker {
	t.Helper()
	tickers := fake.Tickers()
	require.Len(t, tickers, 1)
	return tickers[0]
}

func TestPlayAdvancesAndAutoStops(t *testing.T) {
	c, fake, obs := newTestController(3)
	defer c.Close()

	c.Play()
	ticker := onlyTicker(t, fake)

	ticker.Tick(fake.Now())
	obs.wait(t, 1)
	ticker.Tick(fake.Now())
	obs.wait(t, 1)

	assert.Equal(t, []int{1, 2}, obs.indexes())
	st := c.State()
	assert.Equal(t, 2, st.Index)
	assert.False(t, st.IsPlaying, "must auto-stop at the last point")
	assert.True(t, ticker.Stopped(), "auto-stop must clear the timer")

	// Further ticks are dropped; the playhead never exceeds len-1.
	ticker.Tick(fake.Now())
	assert.Equal(t, 2, c.State().Index)
}

func TestPlayAtEndRewindsFirst(t *testing.T) {
	c, fake, obs := newTestController(4)
	defer c.Close()

	c.Seek(3)
	obs.wait(t, 1)

	c.Play()
	obs.wait(t, 1) // rewind notification
	assert.Equal(t, []int{3, 0}, obs.indexes())
	assert.True(t, c.State().IsPlaying)

	ticker := onlyTicker(t, fake)
	ticker.Tick(fake.Now())
	obs.wait(t, 1)
	assert.Equal(t, 1, c.State().Index)
}

func TestPlayUnplayableRouteIsNoOp(t *testing.T) {
	for _, n := range []int{0, 1} {
		c, fake, _ := newTestController(n)
		c.Play()
		assert.False(t, c.State().IsPlaying, "route of %d points must not play", n)
		assert.Empty(t, fake.Tickers(), "no timer may be created for %d points", n)
		c.Close()
	}
}

func TestPauseKeepsIndex(t *testing.T) {
	c, fake, obs := newTestController(10)
	defer c.Close()

	c.Play()
	ticker := onlyTicker(t, fake)
	ticker.Tick(fake.Now())
	ticker.Tick(fake.Now())
	obs.wait(t, 2)

	c.Pause()
	st := c.State()
	assert.False(t, st.IsPlaying)
	assert.Equal(t, 2, st.Index)
	assert.True(t, ticker.Stopped())

	// Pause when not playing is a no-op.
	c.Pause()
	assert.Equal(t, 2, c.State().Index)
}

func TestStopResetsIndexAndClearsSnapshot(t *testing.T) {
	c, fake, obs := newTestController(10)
	defer c.Close()

	c.Play()
	ticker := onlyTicker(t, fake)
	ticker.Tick(fake.Now())
	ticker.Tick(fake.Now())
	ticker.Tick(fake.Now())
	obs.wait(t, 3)

	c.Stop()
	obs.wait(t, 2) // move to 0 + snapshot cleared

	st := c.State()
	assert.False(t, st.IsPlaying)
	assert.Equal(t, 0, st.Index)
	assert.Equal(t, 1, obs.clearedCount())
	moves := obs.indexes()
	assert.Equal(t, 0, moves[len(moves)-1])
}

func TestStepAndSkipClamp(t *testing.T) {
	c, _, obs := newTestController(15)
	defer c.Close()

	c.Step(-1)
	assert.Equal(t, 0, c.State().Index, "step below zero clamps")

	c.Step(1)
	obs.wait(t, 1)
	assert.Equal(t, 1, c.State().Index)

	c.Skip(1)
	obs.wait(t, 1)
	assert.Equal(t, 11, c.State().Index)

	c.Skip(1)
	obs.wait(t, 1)
	assert.Equal(t, 14, c.State().Index, "skip past the end clamps to len-1")

	c.Skip(-1)
	obs.wait(t, 1)
	assert.Equal(t, 4, c.State().Index)

	c.Skip(-1)
	obs.wait(t, 1)
	assert.Equal(t, 0, c.State().Index)
}

func TestStepDoesNotChangePlayState(t *testing.T) {
	c, fake, obs := newTestController(10)
	defer c.Close()

	c.Play()
	ticker := onlyTicker(t, fake)
	ticker.Tick(fake.Now())
	obs.wait(t, 1)

	c.Step(1)
	obs.wait(t, 1)
	assert.True(t, c.State().IsPlaying, "manual stepping must not pause playback")

	c.Pause()
	c.Step(1)
	obs.wait(t, 1)
	assert.False(t, c.State().IsPlaying)
}

func TestSetSpeedWhilePlayingKeepsTickContinuity(t *testing.T) {
	c, fake, obs := newTestController(20)
	defer c.Close()

	c.Play()
	ticker := onlyTicker(t, fake)
	assert.Equal(t, 500*time.Millisecond, ticker.Interval())

	ticker.Tick(fake.Now())
	ticker.Tick(fake.Now())
	obs.wait(t, 2)

	c.SetSpeed(models.SpeedFastMs)
	assert.Equal(t, 200*time.Millisecond, ticker.Interval(), "running timer restarts at the new rate")
	require.Len(t, fake.Tickers(), 1, "rate change must not spawn a second timer")

	ticker.Tick(fake.Now())
	ticker.Tick(fake.Now())
	obs.wait(t, 2)

	// Exactly one index per tick across the rate change: no jump, no
	// duplicate.
	assert.Equal(t, []int{1, 2, 3, 4}, obs.indexes())
	assert.Equal(t, models.SpeedFastMs, c.State().SpeedMs)
}

func TestSetSpeedRejectsUnknownRate(t *testing.T) {
	c, _, _ := newTestController(5)
	defer c.Close()

	c.SetSpeed(123)
	assert.Equal(t, models.SpeedDoubleMs, c.State().SpeedMs)
}

func TestRebuildForceStops(t *testing.T) {
	c, fake, obs := newTestController(10)
	defer c.Close()

	c.Play()
	ticker := onlyTicker(t, fake)
	ticker.Tick(fake.Now())
	obs.wait(t, 1)

	next := testRoute(6)
	next.VehicleID = "T2"
	c.Rebuild(next)
	obs.wait(t, 1) // playhead placed at the new route's start

	st := c.State()
	assert.False(t, st.IsPlaying)
	assert.Equal(t, 0, st.Index)
	assert.Equal(t, "T2", st.VehicleID)
	assert.Equal(t, 6, st.PointCount)
	assert.True(t, ticker.Stopped())
}

func TestIndexAlwaysInBounds(t *testing.T) {
	c, fake, _ := newTestController(5)
	defer c.Close()

	ops := []func(){
		func() { c.Step(1) },
		func() { c.Skip(1) },
		func() { c.Step(-1) },
		func() { c.Play() },
		func() { c.Skip(-1) },
		func() { c.Pause() },
		func() { c.Step(1) },
		func() { c.Stop() },
		func() { c.Skip(1) },
		func() { c.Play() },
	}
	for _, op := range ops {
		op()
		st := c.State()
		assert.GreaterOrEqual(t, st.Index, 0)
		assert.Less(t, st.Index, 5)
	}
	_ = fake
}

func TestProgressPercent(t *testing.T) {
	c, _, obs := newTestController(5)
	defer c.Close()

	assert.Zero(t, c.State().ProgressPercent)

	c.Seek(2)
	obs.wait(t, 1)
	assert.InDelta(t, 50, c.State().ProgressPercent, 1e-9)

	c.Seek(4)
	obs.wait(t, 1)
	assert.InDelta(t, 100, c.State().ProgressPercent, 1e-9)
}

func TestCurrentPoint(t *testing.T) {
	c, _, obs := newTestController(5)
	defer c.Close()

	p, ok := c.CurrentPoint()
	require.True(t, ok)
	assert.Equal(t, 0, p.Timestamp.Compare(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)))

	c.Seek(3)
	obs.wait(t, 1)
	p, ok = c.CurrentPoint()
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 10, 9, 3, 0, 0, time.UTC), p.Timestamp)

	empty := NewController(nil, clock.NewFake(time.Now()), nil)
	_, ok = empty.CurrentPoint()
	assert.False(t, ok)
}
