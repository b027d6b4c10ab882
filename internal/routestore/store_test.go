package routestore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfleet/tracking-backend-go/internal/models"
)

func routeOf(vehicleID string, pts ...models.HistoryPoint) *models.Route {
	return &models.Route{VehicleID: vehicleID, Points: pts}
}

func pt(lat, lng float64, at time.Time) models.HistoryPoint {
	return models.HistoryPoint{Location: models.LatLng{Lat: lat, Lng: lng}, Timestamp: at}
}

func TestSetGetRemove(t *testing.T) {
	s := New()
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	r := routeOf("T1", pt(-3.43, 115.56, base), pt(-3.44, 115.57, base.Add(time.Minute)))
	s.Set("T1", r)

	assert.Same(t, r, s.Get("T1"))
	assert.Equal(t, []string{"T1"}, s.VehicleIDs())

	s.Remove("T1")
	assert.Nil(t, s.Get("T1"))
}

func TestSetEmptyRouteRemoves(t *testing.T) {
	s := New()
	base := time.Now()
	s.Set("T1", routeOf("T1", pt(-3.43, 115.56, base)))
	require.NotNil(t, s.Get("T1"))

	s.Set("T1", routeOf("T1"))
	assert.Nil(t, s.Get("T1"))

	s.Set("T2", nil)
	assert.Nil(t, s.Get("T2"))
}

func TestSetReplacesWholesale(t *testing.T) {
	s := New()
	base := time.Now()
	old := routeOf("T1", pt(-3.43, 115.56, base), pt(-3.44, 115.57, base.Add(time.Minute)))
	s.Set("T1", old)

	next := routeOf("T1", pt(-3.50, 115.60, base), pt(-3.51, 115.61, base.Add(time.Minute)))
	s.Set("T1", next)

	assert.Same(t, next, s.Get("T1"))
	assert.NotSame(t, old, s.Get("T1"))
}

func TestDistanceKmDegenerateRoutes(t *testing.T) {
	s := New()
	base := time.Now()

	assert.Zero(t, s.DistanceKm("missing"))

	s.Set("one", routeOf("one", pt(-3.43, 115.56, base)))
	assert.Zero(t, s.DistanceKm("one"))

	// Identical coordinates sum to zero distance.
	s.Set("same", routeOf("same",
		pt(-3.43, 115.56, base),
		pt(-3.43, 115.56, base.Add(time.Minute)),
		pt(-3.43, 115.56, base.Add(2*time.Minute))))
	assert.Zero(t, s.DistanceKm("same"))
}

func TestSummary(t *testing.T) {
	s := New()
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	s.Set("T1", routeOf("T1",
		pt(-3.4290, 115.5590, start),
		pt(-3.5190, 115.5590, end)))

	sum := s.Summary("T1")
	require.NotNil(t, sum)
	assert.Equal(t, 2, sum.PointCount)
	assert.InDelta(t, 2.0, sum.DurationHours, 1e-9)
	assert.True(t, sum.DistanceKm > 0)
	assert.InDelta(t, sum.DistanceKm/2.0, sum.AvgSpeedKmh, 1e-9)
	require.NotNil(t, sum.StartTime)
	require.NotNil(t, sum.EndTime)
	assert.Equal(t, start, *sum.StartTime)
	assert.Equal(t, end, *sum.EndTime)
}

func TestSummarySinglePoint(t *testing.T) {
	s := New()
	s.Set("T1", routeOf("T1", pt(-3.43, 115.56, time.Now())))

	sum := s.Summary("T1")
	require.NotNil(t, sum)
	assert.Equal(t, 1, sum.PointCount)
	assert.Zero(t, sum.DistanceKm)
	assert.Zero(t, sum.DurationHours)
	assert.Zero(t, sum.AvgSpeedKmh)
	assert.Nil(t, sum.StartTime)
}

func TestSummaryMissingRoute(t *testing.T) {
	assert.Nil(t, New().Summary("nope"))
}

func TestSummaryReportedSpeeds(t *testing.T) {
	s := New()
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	points := make([]models.HistoryPoint, 0, 5)
	for i, speed := range []float64{30, 45, 60, 55, 80} {
		p := pt(-3.43, 115.56+float64(i)*0.001, base.Add(time.Duration(i)*time.Minute))
		p.Speed = speed
		points = append(points, p)
	}
	s.Set("T1", routeOf("T1", points...))

	sum := s.Summary("T1")
	require.NotNil(t, sum)
	assert.Equal(t, 80.0, sum.MaxSpeedKmh)
	assert.InDelta(t, 76.0, sum.P95SpeedKmh, 1e-9)
}

func TestClear(t *testing.T) {
	s := New()
	base := time.Now()
	s.Set("T1", routeOf("T1", pt(1, 1, base)))
	s.Set("T2", routeOf("T2", pt(2, 2, base)))

	s.Clear()
	assert.Empty(t, s.VehicleIDs())
	assert.Empty(t, s.Snapshot())
}
