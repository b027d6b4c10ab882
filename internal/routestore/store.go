// Package routestore holds the per-vehicle route currently on display.
// It is the source of truth for both the drawn path and the playback
// scrubber.
package routestore

import (
	"sync"

	"github.com/openfleet/tracking-backend-go/internal/models"
	"github.com/openfleet/tracking-backend-go/internal/spatial"
	"github.com/openfleet/tracking-backend-go/internal/stats"
)

// Store maps vehicle ids to their loaded Route. Replacement is atomic:
// a Route is swapped in wholesale and never patched in place, so readers
// never observe a half-updated route.
type Store struct {
	mu     sync.RWMutex
	routes map[string]*models.Route
}

// New returns an empty store.
func New() *Store {
	return &Store{routes: make(map[string]*models.Route)}
}

// Set replaces the route for a vehicle. The store takes ownership of the
// route; callers must not mutate it afterwards.
func (s *Store) Set(vehicleID string, route *models.Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if route == nil || route.Len() == 0 {
		delete(s.routes, vehicleID)
		return
	}
	s.routes[vehicleID] = route
}

// Get returns the route for a vehicle, or nil.
func (s *Store) Get(vehicleID string) *models.Route {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.routes[vehicleID]
}

// Remove discards a vehicle's route.
func (s *Store) Remove(vehicleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.routes, vehicleID)
}

// Clear discards every route, used when the query window changes.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes = make(map[string]*models.Route)
}

// VehicleIDs lists vehicles that currently have a route.
func (s *Store) VehicleIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.routes))
	for id := range s.routes {
		ids = append(ids, id)
	}
	return ids
}

// Snapshot returns the current vehicle→route mapping. The map is a copy;
// the routes themselves are shared and immutable.
func (s *Store) Snapshot() map[string]*models.Route {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*models.Route, len(s.routes))
	for id, r := range s.routes {
		out[id] = r
	}
	return out
}

// DistanceKm is the great-circle polyline length of a vehicle's route.
// Missing or single-point routes have zero length.
func (s *Store) DistanceKm(vehicleID string) float64 {
	route := s.Get(vehicleID)
	if route == nil {
		return 0
	}
	return spatial.PolylineLengthKm(path(route))
}

// Summary derives the journey stats panel values for a vehicle. Returns
// nil when no route is loaded.
func (s *Store) Summary(vehicleID string) *models.JourneySummary {
	route := s.Get(vehicleID)
	if route == nil {
		return nil
	}
	sum := &models.JourneySummary{
		DistanceKm: spatial.PolylineLengthKm(path(route)),
		PointCount: route.Len(),
	}
	if route.Len() > 1 {
		start := route.Points[0].Timestamp
		end := route.Points[route.Len()-1].Timestamp
		sum.StartTime = &start
		sum.EndTime = &end
		if d := end.Sub(start); d > 0 {
			sum.DurationHours = d.Hours()
			sum.AvgSpeedKmh = sum.DistanceKm / sum.DurationHours
		}
	}
	speeds := make([]float64, 0, route.Len())
	for _, p := range route.Points {
		speeds = append(speeds, p.Speed)
	}
	sum.MaxSpeedKmh = stats.Max(speeds)
	sum.P95SpeedKmh = stats.Percentile(speeds, 95)
	return sum
}

func path(route *models.Route) []models.LatLng {
	pts := make([]models.LatLng, len(route.Points))
	for i, p := range route.Points {
		pts[i] = p.Location
	}
	return pts
}
