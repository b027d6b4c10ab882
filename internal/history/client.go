package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/openfleet/tracking-backend-go/internal/models"
)

// Client talks to the upstream fleet API that serves truck metadata and
// snapshot-enriched history. Responses arrive in a
// {success, data, meta} envelope.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *log.Entry
}

// NewClient builds a client for the given base URL. An empty token
// skips the Authorization header.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
		logger:  log.WithField("component", "history_client"),
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
}

type wireLocation struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Speed   float64 `json:"speed"`
	Heading float64 `json:"heading"`
}

type wireTire struct {
	TireNo      int       `json:"tireNo"`
	Position    string    `json:"position"`
	Temperature float64   `json:"temperature"`
	Pressure    float64   `json:"pressure"`
	Status      string    `json:"status"`
	Battery     int       `json:"battery"`
	Timestamp   time.Time `json:"timestamp"`
}

type wireSnapshot struct {
	Name   string `json:"name"`
	Plate  string `json:"plate"`
	VIN    string `json:"vin"`
	Model  string `json:"model"`
	Year   int    `json:"year"`
	Driver string `json:"driver"`
	Vendor string `json:"vendor"`
}

type wirePoint struct {
	TruckID   string        `json:"truck_id"`
	Timestamp time.Time     `json:"timestamp"`
	Location  wireLocation  `json:"location"`
	Tires     []wireTire    `json:"tires"`
	Snapshot  *wireSnapshot `json:"truckSnapshot"`
}

type wireTruck struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Plate     string       `json:"plate"`
	Model     string       `json:"model"`
	Driver    string       `json:"driver"`
	Status    string       `json:"status"`
	Position  wireLocation `json:"position"`
	DeletedAt *time.Time   `json:"deleted_at"`
}

// GetTruckHistory fetches history points for one truck inside the
// window, newest page bounded by limit. Points for other trucks may
// leak through and must be filtered by the caller.
func (c *Client) GetTruckHistory(ctx context.Context, truckID string, window models.TimeWindow, limit int) ([]models.HistoryPoint, error) {
	q := url.Values{}
	q.Set("start_date", window.Start.Format(time.RFC3339))
	q.Set("end_date", window.End.Format(time.RFC3339))
	q.Set("limit", strconv.Itoa(limit))

	var raw []wirePoint
	path := fmt.Sprintf("/api/history/trucks/%s?%s", url.PathEscape(truckID), q.Encode())
	if err := c.get(ctx, path, &raw); err != nil {
		return nil, err
	}
	points := make([]models.HistoryPoint, 0, len(raw))
	for _, p := range raw {
		points = append(points, p.toModel())
	}
	return points, nil
}

// GetTruck fetches one truck's registry record, including deletion
// metadata. Deleted trucks are still returned.
func (c *Client) GetTruck(ctx context.Context, truckID string) (*models.Vehicle, error) {
	var raw wireTruck
	if err := c.get(ctx, "/api/trucks/"+url.PathEscape(truckID), &raw); err != nil {
		return nil, err
	}
	v := raw.toModel()
	return &v, nil
}

// ListTrucks fetches the truck registry. With includeDeleted the
// upstream also returns soft-deleted trucks so their last-known data
// stays viewable.
func (c *Client) ListTrucks(ctx context.Context, includeDeleted bool) ([]models.Vehicle, error) {
	path := "/api/trucks"
	if includeDeleted {
		path += "?include_deleted=true"
	}
	var raw []wireTruck
	if err := c.get(ctx, path, &raw); err != nil {
		return nil, err
	}
	out := make([]models.Vehicle, 0, len(raw))
	for _, t := range raw {
		out = append(out, t.toModel())
	}
	return out, nil
}

// GetLiveTracking fetches current positions for the whole fleet.
func (c *Client) GetLiveTracking(ctx context.Context) ([]models.Vehicle, error) {
	var raw []wireTruck
	if err := c.get(ctx, "/api/tracking/live", &raw); err != nil {
		return nil, err
	}
	out := make([]models.Vehicle, 0, len(raw))
	for _, t := range raw {
		v := t.toModel()
		v.LivePosition = models.LatLng{Lat: t.Position.Lat, Lng: t.Position.Lng}
		out = append(out, v)
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("upstream returned status %d for %s", resp.StatusCode, path)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !env.Success {
		return fmt.Errorf("upstream rejected request: %s", env.Message)
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	return nil
}

func (p wirePoint) toModel() models.HistoryPoint {
	tires := make([]models.TireReading, 0, len(p.Tires))
	for _, t := range p.Tires {
		tires = append(tires, models.TireReading{
			TireNo:      t.TireNo,
			Position:    t.Position,
			Temperature: t.Temperature,
			Pressure:    t.Pressure,
			Status:      t.Status,
			Battery:     t.Battery,
			Timestamp:   t.Timestamp,
		})
	}
	point := models.HistoryPoint{
		VehicleID: p.TruckID,
		Timestamp: p.Timestamp,
		Location:  models.LatLng{Lat: p.Location.Lat, Lng: p.Location.Lng},
		Speed:     p.Location.Speed,
		Heading:   p.Location.Heading,
		Tires:     tires,
	}
	if p.Snapshot != nil {
		point.Snapshot = &models.VehicleSnapshot{
			Name:   p.Snapshot.Name,
			Plate:  p.Snapshot.Plate,
			VIN:    p.Snapshot.VIN,
			Model:  p.Snapshot.Model,
			Year:   p.Snapshot.Year,
			Driver: p.Snapshot.Driver,
			Vendor: p.Snapshot.Vendor,
		}
	}
	return point
}

func (t wireTruck) toModel() models.Vehicle {
	return models.Vehicle{
		ID:        t.ID,
		Name:      t.Name,
		Plate:     t.Plate,
		Model:     t.Model,
		Driver:    t.Driver,
		Status:    models.VehicleStatus(t.Status),
		Position:  models.LatLng{Lat: t.Position.Lat, Lng: t.Position.Lng},
		Speed:     t.Position.Speed,
		Heading:   t.Position.Heading,
		DeletedAt: t.DeletedAt,
	}
}
