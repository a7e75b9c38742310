package dto

import "time"

// PlanReason explains why a proposed slot is not acceptable as submitted.
type PlanReason string

const (
	ReasonDayFullyBlocked    PlanReason = "DAY_FULLY_BLOCKED"
	ReasonNoWindow           PlanReason = "NO_WINDOW"
	ReasonInsufficientWindow PlanReason = "INSUFFICIENT_WINDOW"
	ReasonEndOutsideWindow   PlanReason = "END_OUTSIDE_WINDOW"
	ReasonOverlapsExisting   PlanReason = "OVERLAPS_EXISTING"
	ReasonEventLocked        PlanReason = "EVENT_LOCKED"
)

// Message renders the reason the way the scheduling page words it.
func (r PlanReason) Message() string {
	switch r {
	case ReasonDayFullyBlocked:
		return "This day is fully booked. Choose another day."
	case ReasonNoWindow:
		return "No available time after selected start."
	case ReasonInsufficientWindow:
		return "Insufficient free time after selected start."
	case ReasonEndOutsideWindow:
		return "End must lie within the free window."
	case ReasonOverlapsExisting:
		return "Selected time overlaps with an existing event."
	case ReasonEventLocked:
		return "Event is part of a swap; its time cannot change."
	default:
		return ""
	}
}

// ValidateProposalRequest is the body of POST /availability/validate.
// Times are RFC3339 or local "2006-01-02T15:04".
type ValidateProposalRequest struct {
	Start   string `json:"start" validate:"required"`
	End     string `json:"end,omitempty"`
	EventID string `json:"event_id,omitempty" validate:"omitempty,max=64"`
}

// Window is a serialised free window.
type Window struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"duration_minutes"`
}

// ProposalPlan is the outcome of validating a proposed slot.
type ProposalPlan struct {
	Valid          bool         `json:"valid"`
	Reasons        []PlanReason `json:"reasons,omitempty"`
	Messages       []string     `json:"messages,omitempty"`
	RequestedStart time.Time    `json:"requested_start"`
	SnappedStart   *time.Time   `json:"snapped_start,omitempty"`
	SuggestedEnd   *time.Time   `json:"suggested_end,omitempty"`
	Window         *Window      `json:"window,omitempty"`
	PendingSwapID  string       `json:"pending_swap_id,omitempty"`
}

// Reject records a failure reason on the plan.
func (p *ProposalPlan) Reject(reason PlanReason) {
	p.Valid = false
	p.Reasons = append(p.Reasons, reason)
	p.Messages = append(p.Messages, reason.Message())
}

// BlockedDaysResponse lists fully blocked days inside the requested range.
type BlockedDaysResponse struct {
	From     string   `json:"from"`
	To       string   `json:"to"`
	Timezone string   `json:"timezone"`
	Days     []string `json:"days"`
}

// FreeWindowResponse answers GET /availability/window.
type FreeWindowResponse struct {
	Start     time.Time `json:"start"`
	Available bool      `json:"available"`
	Window    *Window   `json:"window,omitempty"`
}

// DaySummary aggregates free time for one calendar day.
type DaySummary struct {
	Day               string   `json:"day"`
	FullyBlocked      bool     `json:"fully_blocked"`
	FreeMinutes       int      `json:"free_minutes"`
	BusyMinutes       int      `json:"busy_minutes"`
	LargestWindow     *Window  `json:"largest_window,omitempty"`
	Windows           []Window `json:"windows"`
	BlockedRangeCount int      `json:"blocked_range_count"`
}

// PolicyResponse exposes the scheduling knobs clients need.
type PolicyResponse struct {
	Timezone               string `json:"timezone"`
	MinDurationMinutes     int    `json:"min_duration_minutes"`
	DefaultDurationMinutes int    `json:"default_duration_minutes"`
	NoticeDismissMillis    int64  `json:"notice_dismiss_ms"`
	DayEnd                 string `json:"day_end"`
}

// InvalidateResponse reports a cache drop.
type InvalidateResponse struct {
	UserIDs []string `json:"user_ids"`
}
