// Package deletion cross-references a vehicle's soft-deletion timestamp
// against the active query window.
package deletion

import (
	"fmt"
	"time"

	"github.com/openfleet/tracking-backend-go/internal/models"
)

// State classifies how a vehicle's deletion relates to the query window.
type State string

const (
	// NotDeleted covers both live vehicles and vehicles deleted after the
	// window; either way the full window is valid.
	NotDeleted State = "not_deleted"
	// DeletedBeforeWindow means no history exists for the window at all.
	DeletedBeforeWindow State = "deleted_before_window"
	// DeletedDuringWindow means only history before the deletion instant
	// is valid and displayed.
	DeletedDuringWindow State = "deleted_during_window"
)

// Classification is the banner payload for the deletion-warning widget.
type Classification struct {
	State     State      `json:"state"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
	Message   string     `json:"message,omitempty"`
}

// Classify maps (deletedAt, window) to a banner classification. It must be
// recomputed whenever the selected vehicle or window changes.
func Classify(deletedAt *time.Time, window models.TimeWindow) Classification {
	if deletedAt == nil {
		return Classification{State: NotDeleted}
	}
	del := *deletedAt
	if !del.After(window.Start) {
		return Classification{
			State:     DeletedBeforeWindow,
			DeletedAt: deletedAt,
			Message: fmt.Sprintf(
				"This vehicle was deleted on %s. No history is available for the selected period.",
				del.Format("2 Jan 2006 15:04")),
		}
	}
	if !del.After(window.End) {
		return Classification{
			State:     DeletedDuringWindow,
			DeletedAt: deletedAt,
			Message: fmt.Sprintf(
				"This vehicle was deleted on %s. Only history before that time is available for this date.",
				del.Format("2 Jan 2006 15:04")),
		}
	}
	return Classification{State: NotDeleted, DeletedAt: deletedAt}
}
