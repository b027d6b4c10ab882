// Package history reconstructs per-vehicle routes from time-windowed,
// possibly fragmented sensor snapshots.
package history

import (
	"context"
	"math"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/openfleet/tracking-backend-go/internal/models"
)

// DefaultLimit bounds one history query. There is no pagination beyond
// this single page.
const DefaultLimit = 10000

// Source yields raw history points for one vehicle and window. The
// points may be unsorted and may contain other vehicles' data.
type Source interface {
	Name() string
	FetchPoints(ctx context.Context, vehicleID string, window models.TimeWindow, limit int) ([]models.HistoryPoint, models.HistorySource, error)
}

// Registry resolves a vehicle's registry record, including deletion
// metadata.
type Registry interface {
	GetTruck(ctx context.Context, vehicleID string) (*models.Vehicle, error)
}

// Fetcher turns source data into render-ready routes. Sources are tried
// in order; the first one that yields points wins. Failures degrade to
// an empty route, never an error, so one vehicle's outage cannot abort
// rendering of others.
type Fetcher struct {
	registry Registry
	sources  []Source
	limit    int
	logger   *log.Entry
}

// NewFetcher builds a fetcher over the given sources. The registry may
// be nil when deletion metadata is unavailable.
func NewFetcher(registry Registry, sources ...Source) *Fetcher {
	return &Fetcher{
		registry: registry,
		sources:  sources,
		limit:    DefaultLimit,
		logger:   log.WithField("component", "fetcher"),
	}
}

// Fetch reconstructs the route for one vehicle inside the window. The
// returned route is never nil; it is empty when every source failed or
// yielded nothing.
func (f *Fetcher) Fetch(ctx context.Context, vehicleID string, window models.TimeWindow) *models.Route {
	route := &models.Route{VehicleID: vehicleID, Window: window, Source: models.SourceNone}

	var deletedAt *time.Time
	if f.registry != nil {
		v, err := f.registry.GetTruck(ctx, vehicleID)
		if err != nil {
			f.logger.WithError(err).WithField("vehicle", vehicleID).
				Warn("registry lookup failed, deletion cutoff unavailable")
		} else if v != nil {
			deletedAt = v.DeletedAt
		}
	}

	for _, src := range f.sources {
		points, sourceKind, err := src.FetchPoints(ctx, vehicleID, window, f.limit)
		if err != nil {
			f.logger.WithError(err).WithFields(log.Fields{
				"vehicle": vehicleID,
				"source":  src.Name(),
			}).Warn("history source failed")
			continue
		}
		if len(points) == 0 {
			continue
		}
		route.Points = Normalize(points, vehicleID, deletedAt)
		route.Source = sourceKind
		if route.Len() > 0 {
			break
		}
		// Everything this source returned was filtered out; the route
		// is unserved again for the next source.
		route.Source = models.SourceNone
	}

	f.logger.WithFields(log.Fields{
		"vehicle": vehicleID,
		"points":  route.Len(),
		"source":  string(route.Source),
	}).Debug("route reconstructed")
	return route
}

// Normalize filters and orders raw source points for one vehicle:
// points for other vehicles are dropped, as are points with non-finite
// or (0,0) coordinates and points at or after the vehicle's deletion
// instant. Survivors are sorted ascending by timestamp. Idempotent.
func Normalize(points []models.HistoryPoint, vehicleID string, deletedAt *time.Time) []models.HistoryPoint {
	out := make([]models.HistoryPoint, 0, len(points))
	for _, p := range points {
		if p.VehicleID != vehicleID {
			continue
		}
		if !finite(p.Location.Lat) || !finite(p.Location.Lng) || p.Location.IsZero() {
			continue
		}
		if p.Timestamp.IsZero() {
			continue
		}
		if deletedAt != nil && !p.Timestamp.Before(*deletedAt) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// UpstreamSource serves snapshot-enriched history from the upstream
// fleet API.
type UpstreamSource struct {
	client *Client
}

// NewUpstreamSource wraps the upstream client as a Source.
func NewUpstreamSource(client *Client) *UpstreamSource {
	return &UpstreamSource{client: client}
}

func (s *UpstreamSource) Name() string { return "upstream" }

// FetchPoints implements Source.
func (s *UpstreamSource) FetchPoints(ctx context.Context, vehicleID string, window models.TimeWindow, limit int) ([]models.HistoryPoint, models.HistorySource, error) {
	points, err := s.client.GetTruckHistory(ctx, vehicleID, window, limit)
	if err != nil {
		return nil, "", err
	}
	return points, models.SourceUpstream, nil
}

// PointLoader is the slice of the local archive the fetcher needs.
type PointLoader interface {
	GetPoints(ctx context.Context, vehicleID string, window models.TimeWindow, limit int) ([]models.HistoryPoint, error)
}

// ArchiveSource serves history recorded locally from the telemetry
// feed. Used as a fallback when the upstream has no data.
type ArchiveSource struct {
	loader PointLoader
}

// NewArchiveSource wraps a point loader as a Source.
func NewArchiveSource(loader PointLoader) *ArchiveSource {
	return &ArchiveSource{loader: loader}
}

func (s *ArchiveSource) Name() string { return "archive" }

// FetchPoints implements Source.
func (s *ArchiveSource) FetchPoints(ctx context.Context, vehicleID string, window models.TimeWindow, limit int) ([]models.HistoryPoint, models.HistorySource, error) {
	points, err := s.loader.GetPoints(ctx, vehicleID, window, limit)
	if err != nil {
		return nil, "", err
	}
	return points, models.SourceArchive, nil
}
