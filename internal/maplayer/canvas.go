package maplayer

import (
	"fmt"
	"sync"

	"github.com/openfleet/tracking-backend-go/internal/models"
)

// MarkerState is the serializable form of one marker.
type MarkerState struct {
	ID        string        `json:"id"`
	VehicleID string        `json:"vehicleId"`
	Kind      MarkerKind    `json:"kind"`
	Position  models.LatLng `json:"position"`
	Label     string        `json:"label,omitempty"`
	Color     string        `json:"color,omitempty"`
	Opacity   float64       `json:"opacity"`
}

// PolylineState is the serializable form of one route line.
type PolylineState struct {
	ID        string          `json:"id"`
	VehicleID string          `json:"vehicleId"`
	Color     string          `json:"color,omitempty"`
	Points    []models.LatLng `json:"points"`
}

// CanvasState is a point-in-time copy of everything on the canvas,
// suitable for JSON responses. Clients draw it with whatever mapping
// widget they use.
type CanvasState struct {
	Markers   []MarkerState   `json:"markers"`
	Polylines []PolylineState `json:"polylines"`
	Center    *models.LatLng  `json:"center,omitempty"`
}

// StateCanvas is a Canvas that keeps layer state in memory instead of
// driving a real map widget. Sessions expose its Snapshot over the API.
type StateCanvas struct {
	mu        sync.Mutex
	seq       int
	markers   map[string]*MarkerState
	polylines map[string]*PolylineState
	center    *models.LatLng
}

// NewStateCanvas returns an empty canvas.
func NewStateCanvas() *StateCanvas {
	return &StateCanvas{
		markers:   make(map[string]*MarkerState),
		polylines: make(map[string]*PolylineState),
	}
}

// AddMarker implements Canvas.
func (c *StateCanvas) AddMarker(opts MarkerOptions) MarkerHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	id := fmt.Sprintf("marker-%d", c.seq)
	c.markers[id] = &MarkerState{
		ID:        id,
		VehicleID: opts.VehicleID,
		Kind:      opts.Kind,
		Position:  opts.Position,
		Label:     opts.Label,
		Color:     opts.Color,
		Opacity:   opts.Opacity,
	}
	return &stateMarker{canvas: c, id: id}
}

// AddPolyline implements Canvas.
func (c *StateCanvas) AddPolyline(points []models.LatLng, opts PolylineOptions) PolylineHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	id := fmt.Sprintf("line-%d", c.seq)
	pts := make([]models.LatLng, len(points))
	copy(pts, points)
	c.polylines[id] = &PolylineState{
		ID:        id,
		VehicleID: opts.VehicleID,
		Color:     opts.Color,
		Points:    pts,
	}
	return &statePolyline{canvas: c, id: id}
}

// SetView implements Canvas.
func (c *StateCanvas) SetView(center models.LatLng) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.center = &center
}

// Snapshot returns a deep copy of the current canvas contents.
func (c *StateCanvas) Snapshot() CanvasState {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := CanvasState{
		Markers:   make([]MarkerState, 0, len(c.markers)),
		Polylines: make([]PolylineState, 0, len(c.polylines)),
	}
	for _, m := range c.markers {
		out.Markers = append(out.Markers, *m)
	}
	for _, p := range c.polylines {
		line := *p
		line.Points = make([]models.LatLng, len(p.Points))
		copy(line.Points, p.Points)
		out.Polylines = append(out.Polylines, line)
	}
	if c.center != nil {
		center := *c.center
		out.Center = &center
	}
	return out
}

type stateMarker struct {
	canvas *StateCanvas
	id     string
}

func (m *stateMarker) Move(pos models.LatLng) {
	m.canvas.mu.Lock()
	defer m.canvas.mu.Unlock()
	if s, ok := m.canvas.markers[m.id]; ok {
		s.Position = pos
	}
}

func (m *stateMarker) SetOpacity(opacity float64) {
	m.canvas.mu.Lock()
	defer m.canvas.mu.Unlock()
	if s, ok := m.canvas.markers[m.id]; ok {
		s.Opacity = opacity
	}
}

func (m *stateMarker) Remove() {
	m.canvas.mu.Lock()
	defer m.canvas.mu.Unlock()
	delete(m.canvas.markers, m.id)
}

type statePolyline struct {
	canvas *StateCanvas
	id     string
}

func (p *statePolyline) Remove() {
	p.canvas.mu.Lock()
	defer p.canvas.mu.Unlock()
	delete(p.canvas.polylines, p.id)
}
