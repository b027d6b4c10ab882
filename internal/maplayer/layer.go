// Package maplayer keeps rendered map layers consistent with the route
// store, the vehicle list, the selection state and the cluster filter.
// It owns every marker and polyline handle it creates; callers never
// touch the canvas directly.
package maplayer

import (
	log "github.com/sirupsen/logrus"

	"github.com/openfleet/tracking-backend-go/internal/cluster"
	"github.com/openfleet/tracking-backend-go/internal/models"
)

// MarkerKind distinguishes the three marker roles on the map.
type MarkerKind string

const (
	KindVehicle  MarkerKind = "vehicle"
	KindStart    MarkerKind = "start"
	KindPlayback MarkerKind = "playback"
)

// routePalette colors route polylines. Vehicles cycle through it in
// list order.
var routePalette = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#FFA07A", "#98D8C8",
	"#F7DC6F", "#BB8FCE", "#85C1E9", "#F8B739", "#52BE80",
}

// MarkerOptions describes a marker to be placed on the canvas.
type MarkerOptions struct {
	VehicleID string
	Kind      MarkerKind
	Position  models.LatLng
	Label     string
	Color     string
	Opacity   float64
}

// PolylineOptions describes a route line.
type PolylineOptions struct {
	VehicleID string
	Color     string
}

// MarkerHandle is a live marker owned by the layer.
type MarkerHandle interface {
	Move(pos models.LatLng)
	SetOpacity(opacity float64)
	Remove()
}

// PolylineHandle is a live polyline owned by the layer.
type PolylineHandle interface {
	Remove()
}

// Canvas is the drawing surface the layer reconciles against. SetView
// recenters the viewport without changing zoom.
type Canvas interface {
	AddMarker(opts MarkerOptions) MarkerHandle
	AddPolyline(points []models.LatLng, opts PolylineOptions) PolylineHandle
	SetView(center models.LatLng)
}

// RenderInput is everything one render pass reads. Routes are matched
// by pointer identity: a wholesale route replacement triggers a redraw,
// the same route object does not.
type RenderInput struct {
	Vehicles   []models.Vehicle
	Routes     map[string]*models.Route
	Visible    map[string]bool
	SelectedID string
}

// Layer owns the marker and polyline dictionaries for one map view.
// Not safe for concurrent use; the session serializes access.
type Layer struct {
	canvas Canvas
	filter *cluster.Filter

	markers      map[string]MarkerHandle
	startMarkers map[string]MarkerHandle
	routeLines   map[string]PolylineHandle
	drawnRoutes  map[string]*models.Route

	playback   MarkerHandle
	autoCenter bool
	logger     *log.Entry
}

// NewLayer builds an empty layer over the given canvas. The filter may
// be nil, which renders every vehicle.
func NewLayer(canvas Canvas) *Layer {
	return &Layer{
		canvas:       canvas,
		filter:       cluster.NewFilter(nil),
		markers:      make(map[string]MarkerHandle),
		startMarkers: make(map[string]MarkerHandle),
		routeLines:   make(map[string]PolylineHandle),
		drawnRoutes:  make(map[string]*models.Route),
		autoCenter:   true,
		logger:       log.WithField("component", "maplayer"),
	}
}

// SetClusterFilter replaces the active cluster filter. Takes effect on
// the next render pass.
func (l *Layer) SetClusterFilter(f *cluster.Filter) {
	if f == nil {
		f = cluster.NewFilter(nil)
	}
	l.filter = f
}

// SetAutoCenter toggles viewport recentering on playback moves.
func (l *Layer) SetAutoCenter(enabled bool) {
	l.autoCenter = enabled
}

// Render reconciles the canvas with the input. Existing markers are
// moved in place rather than recreated; layers for vehicles no longer
// present are removed so nothing accumulates across passes.
func (l *Layer) Render(in RenderInput) {
	present := make(map[string]bool, len(in.Vehicles))

	for i, v := range in.Vehicles {
		if !l.filter.Allows(v.ID) {
			continue
		}
		present[v.ID] = true

		route := in.Routes[v.ID]
		pos := displayPosition(v, route)
		opacity := 1.0
		if v.ID == in.SelectedID {
			// The playback marker stands in for the selected
			// vehicle; showing both would look like a duplicate.
			opacity = 0
		}

		if m, ok := l.markers[v.ID]; ok {
			m.Move(pos)
			m.SetOpacity(opacity)
		} else {
			l.markers[v.ID] = l.canvas.AddMarker(MarkerOptions{
				VehicleID: v.ID,
				Kind:      KindVehicle,
				Position:  pos,
				Label:     v.Name,
				Color:     routePalette[i%len(routePalette)],
				Opacity:   opacity,
			})
		}

		l.renderRoute(v.ID, route, in.Visible, routePalette[i%len(routePalette)])
	}

	for id, m := range l.markers {
		if !present[id] {
			m.Remove()
			delete(l.markers, id)
		}
	}
	for id := range l.routeLines {
		if !present[id] {
			l.removeRoute(id)
		}
	}
	l.logger.WithFields(log.Fields{
		"markers": len(l.markers),
		"routes":  len(l.routeLines),
	}).Debug("render pass complete")
}

// renderRoute draws or redraws one vehicle's polyline and start marker.
// A route that lost visibility, shrank below two points or was replaced
// wholesale gets its old layers removed first.
func (l *Layer) renderRoute(id string, route *models.Route, visible map[string]bool, color string) {
	wanted := route.Playable() && isVisible(visible, id)
	if !wanted {
		l.removeRoute(id)
		return
	}
	if l.drawnRoutes[id] == route {
		return
	}
	l.removeRoute(id)

	pts := make([]models.LatLng, len(route.Points))
	for i, p := range route.Points {
		pts[i] = p.Location
	}
	l.routeLines[id] = l.canvas.AddPolyline(pts, PolylineOptions{VehicleID: id, Color: color})
	l.startMarkers[id] = l.canvas.AddMarker(MarkerOptions{
		VehicleID: id,
		Kind:      KindStart,
		Position:  route.Points[0].Location,
		Color:     color,
		Opacity:   1,
	})
	l.drawnRoutes[id] = route
}

func (l *Layer) removeRoute(id string) {
	if line, ok := l.routeLines[id]; ok {
		line.Remove()
		delete(l.routeLines, id)
	}
	if start, ok := l.startMarkers[id]; ok {
		start.Remove()
		delete(l.startMarkers, id)
	}
	delete(l.drawnRoutes, id)
}

// MovePlayback places the playback marker, creating it on first use.
// With auto-center on, the viewport follows it.
func (l *Layer) MovePlayback(vehicleID string, pos models.LatLng) {
	if l.playback == nil {
		l.playback = l.canvas.AddMarker(MarkerOptions{
			VehicleID: vehicleID,
			Kind:      KindPlayback,
			Position:  pos,
			Opacity:   1,
		})
	} else {
		l.playback.Move(pos)
	}
	if l.autoCenter {
		l.canvas.SetView(pos)
	}
}

// RemovePlayback drops the playback marker, if any.
func (l *Layer) RemovePlayback() {
	if l.playback != nil {
		l.playback.Remove()
		l.playback = nil
	}
}

// Clear removes every layer this instance created.
func (l *Layer) Clear() {
	for id, m := range l.markers {
		m.Remove()
		delete(l.markers, id)
	}
	for id := range l.routeLines {
		l.removeRoute(id)
	}
	l.RemovePlayback()
}

// displayPosition prefers the route's first point so the badge sits on
// historical ground, falling back to the live registry position.
func displayPosition(v models.Vehicle, route *models.Route) models.LatLng {
	if route.Len() > 0 {
		return route.Points[0].Location
	}
	if !v.Position.IsZero() {
		return v.Position
	}
	return v.LivePosition
}

func isVisible(visible map[string]bool, id string) bool {
	if visible == nil {
		return true
	}
	on, ok := visible[id]
	return !ok || on
}
