package models

import (
	"strings"
	"time"
)

// EventStatus mirrors the booking service's event states.
type EventStatus string

const (
	EventBusy      EventStatus = "BUSY"
	EventSwappable EventStatus = "SWAPPABLE"
)

// Event is a calendar entry owned by a user in the booking service.
type Event struct {
	ID     string      `json:"id" db:"id"`
	UserID string      `json:"user_id" db:"user_id"`
	Title  string      `json:"title" db:"title"`
	Start  time.Time   `json:"start" db:"start_time"`
	End    time.Time   `json:"end" db:"end_time"`
	Status EventStatus `json:"status" db:"status"`
}

// SwapStatus mirrors the booking service's swap states.
type SwapStatus string

const (
	SwapPending  SwapStatus = "PENDING"
	SwapAccepted SwapStatus = "ACCEPTED"
	SwapRejected SwapStatus = "REJECTED"
)

// NormalizeSwapStatus upper-cases loosely formatted statuses.
func NormalizeSwapStatus(raw string) SwapStatus {
	return SwapStatus(strings.ToUpper(strings.TrimSpace(raw)))
}

// Swap links two events in a swap request.
type Swap struct {
	ID          string     `json:"id" db:"id"`
	FromEventID string     `json:"from_event_id" db:"from_event_id"`
	ToEventID   string     `json:"to_event_id" db:"to_event_id"`
	Status      SwapStatus `json:"status" db:"status"`
}

// SwapLocks summarises which events are frozen by swaps.
type SwapLocks struct {
	Locked  map[string]struct{}
	Pending map[string]string
}

// NewSwapLocks folds swaps into lock sets. Every event referenced by a swap is
// locked; pending swaps additionally map each event to the swap id.
func NewSwapLocks(swaps []Swap) SwapLocks {
	locks := SwapLocks{Locked: make(map[string]struct{}), Pending: make(map[string]string)}
	for _, s := range swaps {
		for _, id := range []string{s.FromEventID, s.ToEventID} {
			if id == "" {
				continue
			}
			locks.Locked[id] = struct{}{}
			if NormalizeSwapStatus(string(s.Status)) == SwapPending {
				locks.Pending[id] = s.ID
			}
		}
	}
	return locks
}

// IsLocked reports whether the event's time may not change.
func (l SwapLocks) IsLocked(eventID string) bool {
	_, ok := l.Locked[eventID]
	return ok
}

// PendingSwap returns the pending swap id holding the event, if any.
func (l SwapLocks) PendingSwap(eventID string) (string, bool) {
	id, ok := l.Pending[eventID]
	return id, ok
}
