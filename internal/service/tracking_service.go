// Package service wires the playback core to its data sources and
// exposes the session model the API serves.
package service

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/openfleet/tracking-backend-go/internal/deletion"
	"github.com/openfleet/tracking-backend-go/internal/history"
	"github.com/openfleet/tracking-backend-go/internal/livefeed"
	"github.com/openfleet/tracking-backend-go/internal/models"
)

// Upstream is the slice of the fleet API the service consumes.
// Satisfied by *history.Client.
type Upstream interface {
	ListTrucks(ctx context.Context, includeDeleted bool) ([]models.Vehicle, error)
	GetTruck(ctx context.Context, truckID string) (*models.Vehicle, error)
	GetLiveTracking(ctx context.Context) ([]models.Vehicle, error)
}

// TireStatsStore computes tire aggregates from the local archive.
type TireStatsStore interface {
	TireStats(ctx context.Context, vehicleID string, window models.TimeWindow) ([]models.TireStat, error)
}

// TrackingService handles business logic for fleet tracking. The
// upstream registry is authoritative for metadata and deletion state;
// the live feed fills in current positions between registry syncs.
type TrackingService struct {
	upstream Upstream
	registry *livefeed.Registry
	fetcher  *history.Fetcher
	stats    TireStatsStore
	logger   *log.Entry
}

// NewTrackingService creates a new tracking service. The stats store
// may be nil when no local archive is configured.
func NewTrackingService(upstream Upstream, registry *livefeed.Registry, fetcher *history.Fetcher, stats TireStatsStore) *TrackingService {
	return &TrackingService{
		upstream: upstream,
		registry: registry,
		fetcher:  fetcher,
		stats:    stats,
		logger:   log.WithField("component", "tracking_service"),
	}
}

// ListVehicles returns the fleet, deleted trucks included so their
// last-known data stays viewable. Live-feed positions overlay the
// registry records. When the upstream is unreachable the live feed
// alone is returned.
func (s *TrackingService) ListVehicles(ctx context.Context) ([]models.Vehicle, error) {
	trucks, err := s.upstream.ListTrucks(ctx, true)
	if err != nil {
		s.logger.WithError(err).Warn("upstream truck list unavailable, serving live feed only")
		return s.registry.List(), nil
	}
	for i := range trucks {
		if live, ok := s.registry.Get(trucks[i].ID); ok {
			trucks[i].LivePosition = live.LivePosition
			trucks[i].Speed = live.Speed
			trucks[i].Heading = live.Heading
			trucks[i].Tires = live.Tires
			trucks[i].LastUpdate = live.LastUpdate
		}
	}
	return trucks, nil
}

// GetVehicle returns one truck's registry record, falling back to the
// live feed when the upstream is unreachable.
func (s *TrackingService) GetVehicle(ctx context.Context, vehicleID string) (*models.Vehicle, error) {
	v, err := s.upstream.GetTruck(ctx, vehicleID)
	if err == nil {
		if live, ok := s.registry.Get(vehicleID); ok {
			v.LivePosition = live.LivePosition
			v.LastUpdate = live.LastUpdate
		}
		return v, nil
	}
	if live, ok := s.registry.Get(vehicleID); ok {
		s.logger.WithError(err).WithField("vehicle", vehicleID).
			Warn("upstream lookup failed, serving live feed record")
		return &live, nil
	}
	return nil, fmt.Errorf("vehicle %s not found: %w", vehicleID, err)
}

// LiveTracking returns current fleet positions, preferring the local
// telemetry feed over an upstream round trip.
func (s *TrackingService) LiveTracking(ctx context.Context) ([]models.Vehicle, error) {
	if list := s.registry.List(); len(list) > 0 {
		return list, nil
	}
	vehicles, err := s.upstream.GetLiveTracking(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch live tracking: %w", err)
	}
	return vehicles, nil
}

// FetchRoute reconstructs one vehicle's route for the window. Never
// returns nil; failures degrade to an empty route.
func (s *TrackingService) FetchRoute(ctx context.Context, vehicleID string, window models.TimeWindow) *models.Route {
	return s.fetcher.Fetch(ctx, vehicleID, window)
}

// TireStats aggregates archived tire readings for one vehicle inside
// the window.
func (s *TrackingService) TireStats(ctx context.Context, vehicleID string, window models.TimeWindow) ([]models.TireStat, error) {
	if s.stats == nil {
		return nil, nil
	}
	stats, err := s.stats.TireStats(ctx, vehicleID, window)
	if err != nil {
		return nil, fmt.Errorf("failed to compute tire stats: %w", err)
	}
	return stats, nil
}

// ClassifyDeletion resolves a vehicle's deletion state against the
// window. Unknown vehicles classify as not deleted.
func (s *TrackingService) ClassifyDeletion(ctx context.Context, vehicleID string, window models.TimeWindow) deletion.Classification {
	v, err := s.GetVehicle(ctx, vehicleID)
	if err != nil {
		s.logger.WithError(err).WithField("vehicle", vehicleID).
			Debug("deletion lookup failed, assuming not deleted")
		return deletion.Classify(nil, window)
	}
	return deletion.Classify(v.DeletedAt, window)
}
