// Package playback implements the clock-driven route replay state machine
// behind the transport widget (play/pause/stop/step/speed/scrubber).
package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/looplab/fsm"
	log "github.com/sirupsen/logrus"

	"github.com/openfleet/tracking-backend-go/internal/clock"
	"github.com/openfleet/tracking-backend-go/internal/models"
)

// Machine states.
const (
	StateStopped = "stopped"
	StatePlaying = "playing"
	StatePaused  = "paused"
)

// Machine events.
const (
	eventPlay   = "play"
	eventPause  = "pause"
	eventStop   = "stop"
	eventFinish = "finish"
)

// Number of points skipped by the transport's skip buttons.
const SkipStride = 10

// Observer receives the two observable effects of every playhead change:
// the playback marker position and the sensor snapshot at the playhead.
type Observer interface {
	PlayheadMoved(vehicleID string, index int, point models.HistoryPoint)
	SnapshotCleared(vehicleID string)
}

// Controller replays one vehicle's route. It owns at most one ticker at a
// time; the ticker is always cleared before a replacement is created and
// on teardown. All mutation happens under the controller mutex; observer
// callbacks fire outside it.
type Controller struct {
	mu      sync.Mutex // fsm callbacks run while held and must not re-lock
	machine *fsm.FSM
	route   *models.Route
	index   int
	speedMs int

	clk      clock.Clock
	ticker   clock.Ticker
	loopDone chan struct{}

	observer Observer
	logger   *log.Entry
}

// NewController builds a stopped controller over the given route. A nil
// route behaves as an empty one.
func NewController(route *models.Route, clk clock.Clock, obs Observer) *Controller {
	if route == nil {
		route = &models.Route{}
	}
	c := &Controller{
		route:    route,
		speedMs:  models.SpeedDoubleMs,
		clk:      clk,
		observer: obs,
		logger:   log.WithField("component", "playback"),
	}
	c.machine = fsm.NewFSM(
		StateStopped,
		fsm.Events{
			{Name: eventPlay, Src: []string{StateStopped, StatePaused}, Dst: StatePlaying},
			{Name: eventPause, Src: []string{StatePlaying}, Dst: StatePaused},
			{Name: eventStop, Src: []string{StatePlaying, StatePaused, StateStopped}, Dst: StateStopped},
			{Name: eventFinish, Src: []string{StatePlaying}, Dst: StateStopped},
		},
		fsm.Callbacks{
			// Guard: a route needs at least two points to be playable.
			"before_" + eventPlay: func(_ context.Context, e *fsm.Event) {
				if !c.route.Playable() {
					e.Cancel()
				}
			},
			"enter_state": func(_ context.Context, e *fsm.Event) {
				c.logger.WithFields(log.Fields{
					"vehicle": c.route.VehicleID,
					"from":    e.Src,
					"to":      e.Dst,
				}).Debug("playback transition")
			},
		},
	)
	return c
}

// fire runs a machine event, treating self-transitions and guard
// cancellations as no-ops. Must be called with the lock held.
func (c *Controller) fire(event string) bool {
	err := c.machine.Event(context.Background(), event)
	if err == nil {
		return true
	}
	var noTransition fsm.NoTransitionError
	var canceled fsm.CanceledError
	if errors.As(err, &noTransition) {
		return true
	}
	if errors.As(err, &canceled) {
		return false
	}
	return false
}

// Play starts or resumes replay. If the playhead already sits at the end
// of the route it rewinds to the start first. A no-op on routes with
// fewer than two points.
func (c *Controller) Play() {
	c.mu.Lock()
	if !c.route.Playable() {
		c.mu.Unlock()
		return
	}
	var moved *int
	if c.index >= c.route.Len()-1 {
		c.index = 0
		moved = &c.index
	}
	if !c.fire(eventPlay) {
		c.mu.Unlock()
		return
	}
	c.startTickerLocked()
	ev := c.moveEventLocked(moved)
	c.mu.Unlock()
	c.emit(ev)
}

// Pause halts replay without moving the playhead.
func (c *Controller) Pause() {
	c.mu.Lock()
	if c.machine.Current() != StatePlaying {
		c.mu.Unlock()
		return
	}
	c.fire(eventPause)
	c.stopTickerLocked()
	c.mu.Unlock()
}

// Stop halts replay, rewinds to the first point and clears the displayed
// sensor snapshot.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.fire(eventStop)
	c.stopTickerLocked()
	c.index = 0
	ev := c.moveEventLocked(&c.index)
	ev.cleared = true
	c.mu.Unlock()
	c.emit(ev)
}

// Step nudges the playhead by n points (typically ±1), clamped to the
// route bounds. Allowed in any state; the play/pause state is unchanged.
func (c *Controller) Step(n int) {
	c.seekBy(n)
}

// Skip jumps the playhead by n*SkipStride points, clamped.
func (c *Controller) Skip(n int) {
	c.seekBy(n * SkipStride)
}

// Seek places the playhead on an absolute index, clamped.
func (c *Controller) Seek(index int) {
	c.mu.Lock()
	ev := c.setIndexLocked(index)
	c.mu.Unlock()
	c.emit(ev)
}

func (c *Controller) seekBy(delta int) {
	c.mu.Lock()
	ev := c.setIndexLocked(c.index + delta)
	c.mu.Unlock()
	c.emit(ev)
}

// setIndexLocked clamps and applies a manual playhead move.
func (c *Controller) setIndexLocked(index int) moveEvent {
	if c.route.Len() == 0 {
		return moveEvent{}
	}
	if index < 0 {
		index = 0
	}
	if max := c.route.Len() - 1; index > max {
		index = max
	}
	if index == c.index {
		return moveEvent{}
	}
	c.index = index
	return c.moveEventLocked(&c.index)
}

// SetSpeed changes the tick interval. A running ticker is restarted at
// the new rate in place, so the playhead position carries over with no
// skipped or duplicated tick.
func (c *Controller) SetSpeed(ms int) {
	if !models.ValidSpeedMs(ms) {
		return
	}
	c.mu.Lock()
	c.speedMs = ms
	if c.machine.Current() == StatePlaying && c.ticker != nil {
		c.ticker.Reset(time.Duration(ms) * time.Millisecond)
	}
	c.mu.Unlock()
}

// Rebuild swaps in a different route, force-stopping any running replay
// and rewinding to index 0. Used when the vehicle selection changes.
func (c *Controller) Rebuild(route *models.Route) {
	if route == nil {
		route = &models.Route{}
	}
	c.mu.Lock()
	c.fire(eventStop)
	c.stopTickerLocked()
	c.route = route
	c.index = 0
	ev := c.moveEventLocked(&c.index)
	c.mu.Unlock()
	c.emit(ev)
}

// Close releases the ticker. The controller must not be used afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	c.fire(eventStop)
	c.stopTickerLocked()
	c.mu.Unlock()
}

// State reports a snapshot for the transport widget.
func (c *Controller) State() models.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.route.Len()
	denom := n - 1
	if denom < 1 {
		denom = 1
	}
	return models.PlaybackState{
		VehicleID:       c.route.VehicleID,
		Index:           c.index,
		IsPlaying:       c.machine.Current() == StatePlaying,
		SpeedMs:         c.speedMs,
		PointCount:      n,
		ProgressPercent: float64(c.index) / float64(denom) * 100,
	}
}

// CurrentPoint returns the history point under the playhead.
func (c *Controller) CurrentPoint() (models.HistoryPoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index < 0 || c.index >= c.route.Len() {
		return models.HistoryPoint{}, false
	}
	return c.route.Points[c.index], true
}

// tick advances the playhead by one point and auto-stops at the end of
// the route. Playback never wraps or loops.
func (c *Controller) tick() {
	c.mu.Lock()
	if c.machine.Current() != StatePlaying {
		c.mu.Unlock()
		return
	}
	max := c.route.Len() - 1
	var ev moveEvent
	if c.index < max {
		c.index++
		ev = c.moveEventLocked(&c.index)
	}
	if c.index >= max {
		c.fire(eventFinish)
		c.stopTickerLocked()
	}
	c.mu.Unlock()
	c.emit(ev)
}

func (c *Controller) startTickerLocked() {
	c.stopTickerLocked()
	t := c.clk.NewTicker(time.Duration(c.speedMs) * time.Millisecond)
	done := make(chan struct{})
	c.ticker = t
	c.loopDone = done
	go func() {
		for {
			select {
			case <-done:
				return
			case <-t.C():
				c.tick()
			}
		}
	}()
}

func (c *Controller) stopTickerLocked() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	if c.loopDone != nil {
		close(c.loopDone)
		c.loopDone = nil
	}
}

// moveEvent carries observer notifications out of the critical section.
type moveEvent struct {
	vehicleID string
	moved     bool
	index     int
	point     models.HistoryPoint
	cleared   bool
}

func (c *Controller) moveEventLocked(index *int) moveEvent {
	ev := moveEvent{vehicleID: c.route.VehicleID}
	if index != nil && *index >= 0 && *index < c.route.Len() {
		ev.moved = true
		ev.index = *index
		ev.point = c.route.Points[*index]
	}
	return ev
}

func (c *Controller) emit(ev moveEvent) {
	if c.observer == nil {
		return
	}
	if ev.moved {
		c.observer.PlayheadMoved(ev.vehicleID, ev.index, ev.point)
	}
	if ev.cleared {
		c.observer.SnapshotCleared(ev.vehicleID)
	}
}
