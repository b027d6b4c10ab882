package models

import "time"

// TireReading is a single tire sensor sample.
type TireReading struct {
	TireNo      int       `json:"tireNo"`
	Position    string    `json:"position"`
	Temperature float64   `json:"temperature"` // °C
	Pressure    float64   `json:"pressure"`    // PSI
	Status      string    `json:"status"`
	Battery     int       `json:"battery"`
	Timestamp   time.Time `json:"timestamp"`
}

// HistoryPoint is one immutable timestamped location+sensor record within
// a Route. Snapshot is present only for points sourced from deleted-vehicle
// snapshots.
type HistoryPoint struct {
	VehicleID string           `json:"vehicleId"`
	Timestamp time.Time        `json:"timestamp"`
	Location  LatLng           `json:"location"`
	Speed     float64          `json:"speed,omitempty"`
	Heading   float64          `json:"heading,omitempty"`
	Tires     []TireReading    `json:"tires,omitempty"`
	Snapshot  *VehicleSnapshot `json:"truckSnapshot,omitempty"`
}

// HistoryQuery bounds a single history fetch.
type HistoryQuery struct {
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
	Limit     int    `form:"limit"`
}

// TireStat is a per-tire aggregate over a time window.
type TireStat struct {
	TireNo         int     `json:"tireNo"`
	Position       string  `json:"position"`
	TempAvg        float64 `json:"tempAvg"`
	TempMin        float64 `json:"tempMin"`
	TempMax        float64 `json:"tempMax"`
	PressureAvg    float64 `json:"pressureAvg"`
	PressureMin    float64 `json:"pressureMin"`
	PressureMax    float64 `json:"pressureMax"`
	Readings       int     `json:"readings"`
	CriticalAlerts int     `json:"criticalAlerts"`
	WarningAlerts  int     `json:"warningAlerts"`
}
