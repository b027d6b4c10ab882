package models

// Playback speed intervals in milliseconds (1x, 2x, 5x).
const (
	SpeedNormalMs = 1000
	SpeedDoubleMs = 500
	SpeedFastMs   = 200
)

// PlaybackState is a snapshot of the playback controller for the transport
// widget. Index is always within [0, len(route)-1].
type PlaybackState struct {
	VehicleID       string  `json:"vehicleId"`
	Index           int     `json:"index"`
	IsPlaying       bool    `json:"isPlaying"`
	SpeedMs         int     `json:"speedMs"`
	PointCount      int     `json:"pointCount"`
	ProgressPercent float64 `json:"progressPercent"`
}

// ValidSpeedMs reports whether ms is one of the selectable playback rates.
func ValidSpeedMs(ms int) bool {
	return ms == SpeedNormalMs || ms == SpeedDoubleMs || ms == SpeedFastMs
}
