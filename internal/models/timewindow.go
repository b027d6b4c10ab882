package models

import "time"

// ShiftMode selects how a calendar date maps to a query window.
type ShiftMode string

const (
	ShiftDay    ShiftMode = "day"    // 08:00–16:00
	ShiftNight  ShiftMode = "night"  // 16:00–08:00 next day
	ShiftCustom ShiftMode = "custom" // user-chosen HH:MM pair
)

// TimeWindow is a concrete [Start, End] query interval, always
// Start < End. Both bounds are inclusive, matching the upstream
// history API and the archive query.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Equal reports whether two windows describe the same interval.
func (w TimeWindow) Equal(o TimeWindow) bool {
	return w.Start.Equal(o.Start) && w.End.Equal(o.End)
}
