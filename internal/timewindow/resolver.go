// Package timewindow converts a calendar date plus a shift selection into
// a concrete query window.
package timewindow

import (
	"time"

	"github.com/openfleet/tracking-backend-go/internal/models"
)

// Shift boundaries shared by the day and night windows.
const (
	dayShiftStartHour = 8
	dayShiftEndHour   = 16
)

// Resolve maps a "YYYY-MM-DD" date and a shift mode to a TimeWindow.
// The night shift crosses midnight into the following date. For custom
// shifts, an end time at or before the start time rolls the end to the
// next calendar day. An unparseable date soft-fails to today's day shift
// so the caller never has to handle an error path for bad input.
func Resolve(date string, mode models.ShiftMode, customStart, customEnd string) models.TimeWindow {
	day, err := time.ParseInLocation("2006-01-02", date, time.Local)
	if err != nil {
		now := time.Now()
		day = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
		mode = models.ShiftDay
	}

	switch mode {
	case models.ShiftNight:
		start := at(day, dayShiftEndHour, 0)
		end := at(day.AddDate(0, 0, 1), dayShiftStartHour, 0)
		return models.TimeWindow{Start: start, End: end}
	case models.ShiftCustom:
		sh, sm := parseClock(customStart, dayShiftStartHour, 0)
		eh, em := parseClock(customEnd, dayShiftEndHour, 0)
		start := at(day, sh, sm)
		end := at(day, eh, em)
		if !end.After(start) {
			end = at(day.AddDate(0, 0, 1), eh, em)
		}
		return models.TimeWindow{Start: start, End: end}
	default:
		return models.TimeWindow{
			Start: at(day, dayShiftStartHour, 0),
			End:   at(day, dayShiftEndHour, 0),
		}
	}
}

func at(day time.Time, hour, min int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, min, 0, 0, day.Location())
}

// parseClock reads an "HH:MM" string, substituting the given defaults for
// missing or malformed input.
func parseClock(s string, defHour, defMin int) (int, int) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return defHour, defMin
	}
	return t.Hour(), t.Minute()
}
