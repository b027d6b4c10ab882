package models

import "time"

// HistorySource identifies which collaborator served a Route. The upstream
// history API carries per-point vehicle snapshots; the local archive does
// not, and the dashboard labels it accordingly.
type HistorySource string

const (
	SourceNone     HistorySource = ""
	SourceUpstream HistorySource = "historical"
	SourceArchive  HistorySource = "archive"
)

// Route is the ordered set of history points for one vehicle within one
// time window. Routes are replaced wholesale on refetch, never patched;
// consumers must treat Points as immutable.
type Route struct {
	VehicleID string         `json:"vehicleId"`
	Window    TimeWindow     `json:"window"`
	Points    []HistoryPoint `json:"points"`
	Source    HistorySource  `json:"source"`
}

// Len returns the number of points in the route.
func (r *Route) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Points)
}

// Playable reports whether the route has enough points for playback or a
// polyline. Single-point and empty routes are display-only.
func (r *Route) Playable() bool {
	return r.Len() > 1
}

// JourneySummary holds derived stats for a route, shown in the summary
// panel next to the playback transport.
type JourneySummary struct {
	DistanceKm    float64    `json:"distanceKm"`
	StartTime     *time.Time `json:"startTime,omitempty"`
	EndTime       *time.Time `json:"endTime,omitempty"`
	DurationHours float64    `json:"durationHours"`
	AvgSpeedKmh   float64    `json:"avgSpeedKmh"`
	MaxSpeedKmh   float64    `json:"maxSpeedKmh"`
	P95SpeedKmh   float64    `json:"p95SpeedKmh"`
	PointCount    int        `json:"pointCount"`
}
