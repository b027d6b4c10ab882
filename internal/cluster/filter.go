// Package cluster implements the numeric-range visibility filter over
// vehicle identifiers used by the tracking maps.
package cluster

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Range is an inclusive numeric interval of cluster numbers.
type Range struct {
	Lo int `json:"lo"`
	Hi int `json:"hi"`
}

// DefaultRanges are the cluster ranges offered by the dashboard sidebar.
func DefaultRanges() []Range {
	return []Range{{1, 199}, {200, 399}, {400, 599}, {600, 799}, {800, 999}}
}

// ParseRange reads a "lo-hi" key such as "400-599".
func ParseRange(key string) (Range, error) {
	parts := strings.SplitN(key, "-", 2)
	if len(parts) != 2 {
		return Range{}, fmt.Errorf("invalid cluster range %q", key)
	}
	lo, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Range{}, fmt.Errorf("invalid cluster range %q: %w", key, err)
	}
	hi, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Range{}, fmt.Errorf("invalid cluster range %q: %w", key, err)
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	return Range{Lo: lo, Hi: hi}, nil
}

// String renders the range back to its "lo-hi" key form.
func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.Lo, r.Hi)
}

// ExtractNumber derives the cluster number from a vehicle id or serial.
// Long identifiers (TPMS serial numbers) use their last 3 digits; short
// ones use the first embedded integer. The second return is false when the
// identifier carries no digits at all.
func ExtractNumber(id string) (int, bool) {
	if id == "" {
		return 0, false
	}
	if len(id) > 6 {
		if n, err := strconv.Atoi(id[len(id)-3:]); err == nil {
			return n, true
		}
	}
	return firstInteger(id)
}

func firstInteger(s string) (int, bool) {
	start := -1
	for i, r := range s {
		if unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			n, err := strconv.Atoi(s[start:i])
			return n, err == nil
		}
	}
	if start >= 0 {
		n, err := strconv.Atoi(s[start:])
		return n, err == nil
	}
	return 0, false
}

// Filter holds the currently enabled cluster ranges.
type Filter struct {
	ranges []Range
}

// NewFilter builds a filter over the given ranges. A nil or empty range
// set means no filtering at all: every vehicle is shown. Hiding the whole
// fleet because nothing is ticked would read as a broken map.
func NewFilter(ranges []Range) *Filter {
	return &Filter{ranges: ranges}
}

// Ranges returns the enabled ranges.
func (f *Filter) Ranges() []Range {
	return f.ranges
}

// Allows reports whether a vehicle id passes the filter.
func (f *Filter) Allows(id string) bool {
	if f == nil || len(f.ranges) == 0 {
		return true
	}
	n, ok := ExtractNumber(id)
	if !ok {
		return false
	}
	for _, r := range f.ranges {
		if n >= r.Lo && n <= r.Hi {
			return true
		}
	}
	return false
}
