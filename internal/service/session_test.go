package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfleet/tracking-backend-go/internal/clock"
	"github.com/openfleet/tracking-backend-go/internal/deletion"
	"github.com/openfleet/tracking-backend-go/internal/history"
	"github.com/openfleet/tracking-backend-go/internal/livefeed"
	"github.com/openfleet/tracking-backend-go/internal/maplayer"
	"github.com/openfleet/tracking-backend-go/internal/models"
)

type stubUpstream struct {
	trucks []models.Vehicle
}

func (u *stubUpstream) ListTrucks(context.Context, bool) ([]models.Vehicle, error) {
	return append([]models.Vehicle(nil), u.trucks...), nil
}

func (u *stubUpstream) GetTruck(_ context.Context, id string) (*models.Vehicle, error) {
	for _, t := range u.trucks {
		if t.ID == id {
			v := t
			return &v, nil
		}
	}
	return nil, context.Canceled
}

func (u *stubUpstream) GetLiveTracking(context.Context) ([]models.Vehicle, error) {
	return u.trucks, nil
}

type stubPointSource struct {
	points map[string][]models.HistoryPoint
	calls  int
}

func (s *stubPointSource) Name() string { return "stub" }

func (s *stubPointSource) FetchPoints(_ context.Context, vehicleID string, _ models.TimeWindow, _ int) ([]models.HistoryPoint, models.HistorySource, error) {
	s.calls++
	return s.points[vehicleID], models.SourceUpstream, nil
}

func testFixture(t *testing.T) (*SessionManager, *clock.Fake, *stubPointSource) {
	t.Helper()
	deletedAt := time.Date(2025, 3, 10, 12, 0, 0, 0, time.Local)
	upstream := &stubUpstream{trucks: []models.Vehicle{
		{ID: "101", Name: "Hauler 101", Status: models.StatusActive, Position: models.LatLng{Lat: -3.40, Lng: 115.50}},
		{ID: "202", Name: "Hauler 202", Status: models.StatusDeleted, DeletedAt: &deletedAt, Position: models.LatLng{Lat: -3.50, Lng: 115.60}},
	}}

	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local)
	source := &stubPointSource{points: map[string][]models.HistoryPoint{
		"101": {
			{VehicleID: "101", Timestamp: base, Location: models.LatLng{Lat: -3.40, Lng: 115.50}, Tires: []models.TireReading{{TireNo: 1, Temperature: 70, Pressure: 110}}},
			{VehicleID: "101", Timestamp: base.Add(30 * time.Minute), Location: models.LatLng{Lat: -3.41, Lng: 115.51}},
			{VehicleID: "101", Timestamp: base.Add(time.Hour), Location: models.LatLng{Lat: -3.42, Lng: 115.52}},
		},
	}}

	fetcher := history.NewFetcher(nil, source)
	svc := NewTrackingService(upstream, livefeed.NewRegistry(), fetcher, nil)
	fake := clock.NewFake(time.Date(2025, 3, 10, 10, 0, 0, 0, time.Local))
	mgr := NewSessionManager(svc, fake, time.Minute)
	t.Cleanup(mgr.Close)
	return mgr, fake, source
}

func createSession(t *testing.T, mgr *SessionManager) *Session {
	t.Helper()
	s, err := mgr.Create(context.Background(), CreateOptions{Date: "2025-03-10", Shift: models.ShiftDay})
	require.NoError(t, err)
	return s
}

func badgeIDs(snap SessionSnapshot) []string {
	var ids []string
	for _, m := range snap.Canvas.Markers {
		if m.Kind == maplayer.KindVehicle {
			ids = append(ids, m.VehicleID)
		}
	}
	return ids
}

func TestSessionInitialLoad(t *testing.T) {
	mgr, _, source := testFixture(t)
	s := createSession(t, mgr)

	snap := s.Snapshot()
	assert.Len(t, snap.Vehicles, 2)
	assert.Equal(t, 8, snap.Window.Start.Hour())
	assert.Equal(t, 16, snap.Window.End.Hour())
	assert.ElementsMatch(t, []string{"101", "202"}, badgeIDs(snap),
		"every vehicle gets a badge before any selection")
	assert.Equal(t, 2, source.calls, "the initial load fetches every vehicle's route")
	require.Len(t, snap.Canvas.Polylines, 1, "the vehicle with history gets its route drawn")
	assert.Equal(t, models.LatLng{Lat: -3.40, Lng: 115.50}, snap.Canvas.Polylines[0].Points[0])
	assert.False(t, snap.LastRefresh.IsZero())

	got, ok := mgr.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)
}

func TestSessionLoadsEveryVehicleRoute(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local)
	upstream := &stubUpstream{trucks: []models.Vehicle{
		{ID: "101", Name: "Hauler 101", Status: models.StatusActive},
		{ID: "150", Name: "Hauler 150", Status: models.StatusActive},
	}}
	source := &stubPointSource{points: map[string][]models.HistoryPoint{
		"101": {
			{VehicleID: "101", Timestamp: base, Location: models.LatLng{Lat: -3.40, Lng: 115.50}},
			{VehicleID: "101", Timestamp: base.Add(time.Hour), Location: models.LatLng{Lat: -3.41, Lng: 115.51}},
		},
		"150": {
			{VehicleID: "150", Timestamp: base, Location: models.LatLng{Lat: -3.50, Lng: 115.60}},
			{VehicleID: "150", Timestamp: base.Add(time.Hour), Location: models.LatLng{Lat: -3.51, Lng: 115.61}},
		},
	}}
	svc := NewTrackingService(upstream, livefeed.NewRegistry(), history.NewFetcher(nil, source), nil)
	mgr := NewSessionManager(svc, clock.NewFake(base), time.Minute)
	t.Cleanup(mgr.Close)

	s := createSession(t, mgr)
	snap := s.Snapshot()

	assert.Equal(t, 2, source.calls, "one fetch per vehicle, selection or not")
	require.Len(t, snap.Canvas.Polylines, 2, "every vehicle with history gets a polyline")
	drawn := []string{snap.Canvas.Polylines[0].VehicleID, snap.Canvas.Polylines[1].VehicleID}
	assert.ElementsMatch(t, []string{"101", "150"}, drawn)
	assert.Empty(t, snap.SelectedID)
}

func TestSessionSelectLoadsRoute(t *testing.T) {
	mgr, _, _ := testFixture(t)
	s := createSession(t, mgr)

	require.NoError(t, s.Select(context.Background(), "101"))
	snap := s.Snapshot()

	assert.Equal(t, "101", snap.SelectedID)
	assert.Equal(t, 3, snap.Playback.PointCount)
	require.NotNil(t, snap.Summary)
	assert.Equal(t, 3, snap.Summary.PointCount)
	assert.Greater(t, snap.Summary.DistanceKm, 0.0)
	require.Len(t, snap.Canvas.Polylines, 1)

	require.NotNil(t, snap.Deletion)
	assert.Equal(t, deletion.NotDeleted, snap.Deletion.State)

	// The selected vehicle's badge hides behind the playback marker.
	for _, m := range snap.Canvas.Markers {
		if m.Kind == maplayer.KindVehicle && m.VehicleID == "101" {
			assert.Zero(t, m.Opacity)
		}
	}
}

func TestSessionSelectDeletedVehicle(t *testing.T) {
	mgr, _, _ := testFixture(t)
	s := createSession(t, mgr)

	require.NoError(t, s.Select(context.Background(), "202"))
	snap := s.Snapshot()

	require.NotNil(t, snap.Deletion)
	assert.Equal(t, deletion.DeletedDuringWindow, snap.Deletion.State,
		"deletion at noon falls inside the day shift window")
	assert.Zero(t, snap.Playback.PointCount, "no archived points for the deleted vehicle")
}

func TestSessionPlaybackFlow(t *testing.T) {
	mgr, fake, _ := testFixture(t)
	s := createSession(t, mgr)
	require.NoError(t, s.Select(context.Background(), "101"))

	st, err := s.Playback("play", 0, 0)
	require.NoError(t, err)
	assert.True(t, st.IsPlaying)

	// Creation order: refresher ticker first, playback ticker second.
	tickers := fake.Tickers()
	require.Len(t, tickers, 2)
	playTicker := tickers[1]
	assert.Equal(t, 500*time.Millisecond, playTicker.Interval())

	playTicker.Tick(fake.Now())
	assert.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.Playback.Index == 1 && snap.Sensor != nil
	}, 2*time.Second, 10*time.Millisecond, "a tick moves the playhead and surfaces sensor data")

	snap := s.Snapshot()
	playbackMarkers := 0
	for _, m := range snap.Canvas.Markers {
		if m.Kind == maplayer.KindPlayback {
			playbackMarkers++
			assert.Equal(t, models.LatLng{Lat: -3.41, Lng: 115.51}, m.Position)
		}
	}
	assert.Equal(t, 1, playbackMarkers)
	require.NotNil(t, snap.Canvas.Center, "auto-center follows the playback marker")

	st, err = s.Playback("stop", 0, 0)
	require.NoError(t, err)
	assert.False(t, st.IsPlaying)
	assert.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.Playback.Index == 0 && snap.Sensor == nil
	}, 2*time.Second, 10*time.Millisecond, "stop rewinds and clears the sensor snapshot")
}

func TestSessionPlaybackValidation(t *testing.T) {
	mgr, _, _ := testFixture(t)
	s := createSession(t, mgr)
	require.NoError(t, s.Select(context.Background(), "101"))

	_, err := s.Playback("rewind", 0, 0)
	assert.Error(t, err)

	_, err = s.Playback("play", 0, 123)
	assert.Error(t, err, "unsupported speeds are rejected")

	st, err := s.Playback("", 0, models.SpeedFastMs)
	require.NoError(t, err)
	assert.Equal(t, models.SpeedFastMs, st.SpeedMs)
}

func TestSessionDeselect(t *testing.T) {
	mgr, _, _ := testFixture(t)
	s := createSession(t, mgr)
	require.NoError(t, s.Select(context.Background(), "101"))

	s.Deselect()
	snap := s.Snapshot()
	assert.Empty(t, snap.SelectedID)
	assert.Nil(t, snap.Summary)
	assert.Nil(t, snap.Deletion)
	assert.Empty(t, snap.Canvas.Polylines)
	assert.Zero(t, snap.Playback.PointCount)
	for _, m := range snap.Canvas.Markers {
		assert.NotEqual(t, maplayer.KindPlayback, m.Kind)
	}
}

func TestSessionWindowChangeRefetches(t *testing.T) {
	mgr, _, source := testFixture(t)
	s := createSession(t, mgr)
	require.NoError(t, s.Select(context.Background(), "101"))
	calls := source.calls

	// Same window resolves to a no-op.
	s.SetWindow(context.Background(), "2025-03-10", models.ShiftDay, "", "")
	assert.Equal(t, calls, source.calls)

	w := s.SetWindow(context.Background(), "2025-03-10", models.ShiftNight, "", "")
	assert.Equal(t, 16, w.Start.Hour())
	assert.Equal(t, calls+1, source.calls, "a new window refetches the selected vehicle")
	assert.Equal(t, "101", s.Snapshot().SelectedID, "selection survives a window change")
}

func TestSessionClusterFilter(t *testing.T) {
	mgr, _, _ := testFixture(t)
	s := createSession(t, mgr)

	require.NoError(t, s.SetClusters([]string{"100-199"}))
	assert.Equal(t, []string{"101"}, badgeIDs(s.Snapshot()))

	assert.Error(t, s.SetClusters([]string{"garbage"}))

	require.NoError(t, s.SetClusters(nil))
	assert.ElementsMatch(t, []string{"101", "202"}, badgeIDs(s.Snapshot()))
}

func TestSessionVisibilityToggle(t *testing.T) {
	mgr, _, _ := testFixture(t)
	s := createSession(t, mgr)
	require.NoError(t, s.Select(context.Background(), "101"))
	require.Len(t, s.Snapshot().Canvas.Polylines, 1)

	s.SetVisibility("101", false)
	assert.Empty(t, s.Snapshot().Canvas.Polylines)

	s.SetVisibility("101", true)
	assert.Len(t, s.Snapshot().Canvas.Polylines, 1)
}

func TestSessionManagerDelete(t *testing.T) {
	mgr, _, _ := testFixture(t)
	s := createSession(t, mgr)
	require.Equal(t, 1, mgr.Count())

	assert.True(t, mgr.Delete(s.ID))
	assert.Equal(t, 0, mgr.Count())
	assert.False(t, mgr.Delete(s.ID))
	_, ok := mgr.Get(s.ID)
	assert.False(t, ok)
}
