// Package livefeed maintains the in-memory view of the fleet fed by
// the telemetry stream.
package livefeed

import (
	"sort"
	"sync"
	"time"

	"github.com/openfleet/tracking-backend-go/internal/models"
)

// Registry holds the latest known state per vehicle. Safe for
// concurrent use; the MQTT subscriber writes while API handlers read.
type Registry struct {
	mu       sync.RWMutex
	vehicles map[string]models.Vehicle
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{vehicles: make(map[string]models.Vehicle)}
}

// Upsert stores or replaces a vehicle's latest state.
func (r *Registry) Upsert(v models.Vehicle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vehicles[v.ID] = v
}

// Get returns a vehicle's latest state.
func (r *Registry) Get(id string) (models.Vehicle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.vehicles[id]
	return v, ok
}

// List returns every known vehicle, ordered by id.
func (r *Registry) List() []models.Vehicle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Vehicle, 0, len(r.vehicles))
	for _, v := range r.vehicles {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MarkStale flips vehicles not heard from since the cutoff to offline.
func (r *Registry) MarkStale(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, v := range r.vehicles {
		if v.Status != models.StatusOffline && v.LastUpdate.Before(cutoff) {
			v.Status = models.StatusOffline
			r.vehicles[id] = v
			n++
		}
	}
	return n
}
