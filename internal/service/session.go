package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/openfleet/tracking-backend-go/internal/clock"
	"github.com/openfleet/tracking-backend-go/internal/cluster"
	"github.com/openfleet/tracking-backend-go/internal/deletion"
	"github.com/openfleet/tracking-backend-go/internal/history"
	"github.com/openfleet/tracking-backend-go/internal/maplayer"
	"github.com/openfleet/tracking-backend-go/internal/models"
	"github.com/openfleet/tracking-backend-go/internal/playback"
	"github.com/openfleet/tracking-backend-go/internal/refresh"
	"github.com/openfleet/tracking-backend-go/internal/routestore"
	"github.com/openfleet/tracking-backend-go/internal/timewindow"
)

// SensorSnapshot is the tire state under the playhead, shown by the
// sensor display widget.
type SensorSnapshot struct {
	VehicleID string                  `json:"vehicleId"`
	Timestamp time.Time               `json:"timestamp"`
	Tires     []models.TireReading    `json:"tires"`
	Vehicle   *models.VehicleSnapshot `json:"vehicleSnapshot,omitempty"`
}

// SessionSnapshot is the full client-facing view of one session.
type SessionSnapshot struct {
	ID          string                   `json:"id"`
	Window      models.TimeWindow        `json:"window"`
	SelectedID  string                   `json:"selectedId,omitempty"`
	Vehicles    []models.Vehicle         `json:"vehicles"`
	Visible     map[string]bool          `json:"visible,omitempty"`
	Clusters    []string                 `json:"clusters,omitempty"`
	AutoCenter  bool                     `json:"autoCenter"`
	Playback    models.PlaybackState     `json:"playback"`
	Sensor      *SensorSnapshot          `json:"sensor,omitempty"`
	Summary     *models.JourneySummary   `json:"summary,omitempty"`
	Deletion    *deletion.Classification `json:"deletion,omitempty"`
	Canvas      maplayer.CanvasState     `json:"canvas"`
	LastRefresh time.Time                `json:"lastRefresh"`
	CreatedAt   time.Time                `json:"createdAt"`
}

// Session is one client's playback workspace: a route store, a map
// layer, a playback controller and a refresh loop, all scoped to a
// time window and a selection.
//
// Locking: mu guards all mutable state. Controller calls that emit
// observer notifications (Play, Stop, Rebuild, ...) must happen with
// mu released, because the notifications land back here and take mu.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu             sync.Mutex
	window         models.TimeWindow
	selectedID     string
	vehicles       []models.Vehicle
	visible        map[string]bool
	clusterSpecs   []string
	autoCenter     bool
	sensor         *SensorSnapshot
	classification *deletion.Classification

	store      *routestore.Store
	canvas     *maplayer.StateCanvas
	layer      *maplayer.Layer
	controller *playback.Controller
	refresher  *refresh.Refresher
	tokens     *history.TokenSource

	svc    *TrackingService
	logger *log.Entry
}

func newSession(id string, window models.TimeWindow, svc *TrackingService, clk clock.Clock, refreshInterval time.Duration) *Session {
	canvas := maplayer.NewStateCanvas()
	s := &Session{
		ID:         id,
		CreatedAt:  clk.Now(),
		window:     window,
		visible:    make(map[string]bool),
		autoCenter: true,
		store:      routestore.New(),
		canvas:     canvas,
		layer:      maplayer.NewLayer(canvas),
		tokens:     history.NewTokenSource(),
		svc:        svc,
		logger:     log.WithField("session", id),
	}
	s.controller = playback.NewController(nil, clk, s)
	s.refresher = refresh.New(refreshInterval, clk, s.refreshPass)
	return s
}

// start runs the initial load and launches the refresh loop. Going
// through the refresher stamps LastRefresh and engages the overlap
// guard from the very first pass.
func (s *Session) start(ctx context.Context) {
	s.refresher.Refresh(ctx)
	s.refresher.Start(context.Background())
}

// Close releases the session's loop and timer resources.
func (s *Session) Close() {
	s.refresher.Stop()
	s.controller.Close()
}

// refreshPass reloads the vehicle list and refetches every vehicle's
// route for the current window, so each vehicle keeps a polyline on
// the map, not just the selected one. Runs on the refresh cadence and
// on demand.
func (s *Session) refreshPass(ctx context.Context) {
	s.mu.Lock()
	selected := s.selectedID
	window := s.window
	known := s.vehicles
	s.mu.Unlock()

	vehicles, err := s.svc.ListVehicles(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("vehicle list refresh failed")
		vehicles = nil
	}

	targets := vehicles
	if targets == nil {
		targets = known
	}
	type fetched struct {
		tok   history.Token
		route *models.Route
	}
	results := make(map[string]fetched, len(targets))
	for _, v := range targets {
		tok := s.tokens.Issue(v.ID)
		results[v.ID] = fetched{tok: tok, route: s.svc.FetchRoute(ctx, v.ID, window)}
	}

	var rebuilt *models.Route
	s.mu.Lock()
	if vehicles != nil {
		s.vehicles = vehicles
	}
	for id, f := range results {
		if !s.tokens.IsCurrent(f.tok) {
			continue
		}
		s.store.Set(id, f.route)
		if id == selected && s.selectedID == selected {
			rebuilt = f.route
		}
	}
	s.renderLocked()
	s.mu.Unlock()

	if rebuilt != nil {
		s.controller.Rebuild(rebuilt)
	}
}

// Refresh runs one pass immediately. Returns false when a pass was
// already in flight.
func (s *Session) Refresh(ctx context.Context) bool {
	return s.refresher.Refresh(ctx)
}

// SetWindow resolves and applies a new time window. Routes fetched for
// the old window are discarded and the selected vehicle, if any, is
// refetched.
func (s *Session) SetWindow(ctx context.Context, date string, shift models.ShiftMode, customStart, customEnd string) models.TimeWindow {
	w := timewindow.Resolve(date, shift, customStart, customEnd)

	s.mu.Lock()
	if w.Equal(s.window) {
		s.mu.Unlock()
		return w
	}
	s.window = w
	s.store.Clear()
	selected := s.selectedID
	s.classification = nil
	s.renderLocked()
	s.mu.Unlock()

	if selected != "" {
		s.loadSelected(ctx, selected, w)
	}
	return w
}

// Select loads a vehicle into the playback slot, fetching its route
// and deletion state for the current window.
func (s *Session) Select(ctx context.Context, vehicleID string) error {
	if vehicleID == "" {
		return fmt.Errorf("vehicle id is required")
	}
	s.mu.Lock()
	s.selectedID = vehicleID
	window := s.window
	s.mu.Unlock()

	s.loadSelected(ctx, vehicleID, window)
	return nil
}

// loadSelected fetches route and deletion state, applying them only if
// the selection still matches once the fetch lands.
func (s *Session) loadSelected(ctx context.Context, vehicleID string, window models.TimeWindow) {
	tok := s.tokens.Issue(vehicleID)
	route := s.svc.FetchRoute(ctx, vehicleID, window)
	cls := s.svc.ClassifyDeletion(ctx, vehicleID, window)

	apply := false
	s.mu.Lock()
	if s.tokens.IsCurrent(tok) && s.selectedID == vehicleID {
		s.store.Set(vehicleID, route)
		s.classification = &cls
		s.renderLocked()
		apply = true
	} else {
		s.logger.WithField("vehicle", vehicleID).Debug("stale fetch result dropped")
	}
	s.mu.Unlock()

	if apply {
		s.controller.Rebuild(route)
	}
}

// Deselect clears the playback slot and its layers.
func (s *Session) Deselect() {
	s.mu.Lock()
	selected := s.selectedID
	s.selectedID = ""
	s.classification = nil
	s.sensor = nil
	if selected != "" {
		s.tokens.Forget(selected)
		s.store.Remove(selected)
	}
	s.layer.RemovePlayback()
	s.renderLocked()
	s.mu.Unlock()

	if selected != "" {
		s.controller.Rebuild(nil)
	}
}

// Playback executes one transport-control action and returns the
// resulting state. speedMs applies with any action; zero leaves the
// rate unchanged.
func (s *Session) Playback(action string, n int, speedMs int) (models.PlaybackState, error) {
	c := s.controller
	if speedMs != 0 {
		if !models.ValidSpeedMs(speedMs) {
			return c.State(), fmt.Errorf("unsupported speed %dms", speedMs)
		}
		c.SetSpeed(speedMs)
	}

	switch action {
	case "play":
		c.Play()
	case "pause":
		c.Pause()
	case "stop":
		c.Stop()
	case "step":
		if n == 0 {
			n = 1
		}
		c.Step(n)
	case "skip":
		if n == 0 {
			n = 1
		}
		c.Skip(n)
	case "seek":
		c.Seek(n)
	case "":
		// speed-only update
	default:
		return c.State(), fmt.Errorf("unknown playback action %q", action)
	}
	return c.State(), nil
}

// SetClusters replaces the cluster filter with the given "lo-hi" range
// specs. An empty list shows every vehicle.
func (s *Session) SetClusters(specs []string) error {
	ranges := make([]cluster.Range, 0, len(specs))
	for _, spec := range specs {
		r, err := cluster.ParseRange(spec)
		if err != nil {
			return fmt.Errorf("invalid cluster range %q: %w", spec, err)
		}
		ranges = append(ranges, r)
	}

	s.mu.Lock()
	s.clusterSpecs = append([]string(nil), specs...)
	s.layer.SetClusterFilter(cluster.NewFilter(ranges))
	s.renderLocked()
	s.mu.Unlock()
	return nil
}

// SetVisibility toggles one vehicle's route on the map.
func (s *Session) SetVisibility(vehicleID string, visible bool) {
	s.mu.Lock()
	s.visible[vehicleID] = visible
	s.renderLocked()
	s.mu.Unlock()
}

// SetAutoCenter toggles viewport tracking of the playback marker.
func (s *Session) SetAutoCenter(enabled bool) {
	s.mu.Lock()
	s.autoCenter = enabled
	s.layer.SetAutoCenter(enabled)
	s.mu.Unlock()
}

// Snapshot captures the whole session state for the API.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := SessionSnapshot{
		ID:          s.ID,
		Window:      s.window,
		SelectedID:  s.selectedID,
		Vehicles:    append([]models.Vehicle(nil), s.vehicles...),
		Clusters:    append([]string(nil), s.clusterSpecs...),
		AutoCenter:  s.autoCenter,
		Playback:    s.controller.State(),
		Deletion:    s.classification,
		Canvas:      s.canvas.Snapshot(),
		LastRefresh: s.refresher.LastRefresh(),
		CreatedAt:   s.CreatedAt,
	}
	if len(s.visible) > 0 {
		snap.Visible = make(map[string]bool, len(s.visible))
		for k, v := range s.visible {
			snap.Visible[k] = v
		}
	}
	if s.sensor != nil {
		sensor := *s.sensor
		snap.Sensor = &sensor
	}
	if s.selectedID != "" {
		snap.Summary = s.store.Summary(s.selectedID)
	}
	return snap
}

// renderLocked runs one map reconciliation pass. Callers hold mu.
func (s *Session) renderLocked() {
	s.layer.Render(maplayer.RenderInput{
		Vehicles:   s.vehicles,
		Routes:     s.store.Snapshot(),
		Visible:    s.visible,
		SelectedID: s.selectedID,
	})
}

// PlayheadMoved implements playback.Observer. Called off the
// controller's lock, possibly from the ticker goroutine.
func (s *Session) PlayheadMoved(vehicleID string, _ int, point models.HistoryPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layer.MovePlayback(vehicleID, point.Location)
	s.sensor = &SensorSnapshot{
		VehicleID: vehicleID,
		Timestamp: point.Timestamp,
		Tires:     point.Tires,
		Vehicle:   point.Snapshot,
	}
}

// SnapshotCleared implements playback.Observer.
func (s *Session) SnapshotCleared(string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sensor = nil
}
