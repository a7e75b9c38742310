package models

import (
	"time"

	"github.com/noah-isme/slotswap-availability/internal/availability"
)

// RangeOrigin labels where a blocked range came from.
type RangeOrigin string

const (
	OriginBooking RangeOrigin = "booking"
	OriginFeed    RangeOrigin = "feed"
)

// Subject identifies whose availability is computed and the credentials used
// to read their calendar from the booking service.
type Subject struct {
	UserID string
	Email  string
	Token  string
}

// BlockedRange is one busy interval as reported by a source.
type BlockedRange struct {
	EventID string      `json:"event_id,omitempty" db:"id"`
	Origin  RangeOrigin `json:"origin,omitempty" db:"-"`
	Start   time.Time   `json:"start" db:"start_time"`
	End     time.Time   `json:"end" db:"end_time"`
}

// TimeRange converts the blocked range into an engine interval.
func (b BlockedRange) TimeRange() availability.TimeRange {
	return availability.TimeRange{Start: b.Start, End: b.End}
}

// TimeRanges converts a slice of blocked ranges for the engine.
func TimeRanges(blocked []BlockedRange) []availability.TimeRange {
	out := make([]availability.TimeRange, 0, len(blocked))
	for _, b := range blocked {
		out = append(out, b.TimeRange())
	}
	return out
}
