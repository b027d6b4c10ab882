package models

import "time"

// VehicleStatus is the lifecycle status reported by the fleet registry.
type VehicleStatus string

const (
	StatusActive      VehicleStatus = "active"
	StatusIdle        VehicleStatus = "idle"
	StatusMaintenance VehicleStatus = "maintenance"
	StatusOffline     VehicleStatus = "offline"
	StatusDeleted     VehicleStatus = "deleted"
)

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether the coordinate is the (0,0) "no fix" sentinel.
func (p LatLng) IsZero() bool {
	return p.Lat == 0 && p.Lng == 0
}

// Vehicle represents a fleet vehicle as seen by the tracking view. It is
// owned by the fleet registry; this service only reads it.
type Vehicle struct {
	ID           string        `json:"id"`
	Name         string        `json:"name,omitempty"`
	Plate        string        `json:"plate,omitempty"`
	Model        string        `json:"model,omitempty"`
	Driver       string        `json:"driver,omitempty"`
	Status       VehicleStatus `json:"status"`
	Position     LatLng        `json:"position"`
	LivePosition LatLng        `json:"livePosition"`
	Speed        float64       `json:"speed"`
	Heading      float64       `json:"heading"`
	Battery      float64       `json:"battery"`
	Tires        []TireReading `json:"tires,omitempty"`
	LastUpdate   time.Time     `json:"lastUpdate"`
	DeletedAt    *time.Time    `json:"deletedAt,omitempty"`
}

// IsDeleted reports whether the registry has soft-deleted this vehicle.
func (v *Vehicle) IsDeleted() bool {
	return v.DeletedAt != nil
}

// VehicleSnapshot carries denormalized identity fields embedded in a
// history point. It is preferred over live registry data when the vehicle
// record has since been deleted.
type VehicleSnapshot struct {
	Name   string `json:"name,omitempty"`
	Plate  string `json:"plate,omitempty"`
	VIN    string `json:"vin,omitempty"`
	Model  string `json:"model,omitempty"`
	Year   int    `json:"year,omitempty"`
	Driver string `json:"driver,omitempty"`
	Vendor string `json:"vendor,omitempty"`
}

// Empty reports whether the snapshot carries no identity fields at all.
func (s *VehicleSnapshot) Empty() bool {
	if s == nil {
		return true
	}
	return s.Name == "" && s.Plate == "" && s.VIN == "" && s.Model == "" &&
		s.Year == 0 && s.Driver == "" && s.Vendor == ""
}
