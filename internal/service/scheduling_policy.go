package service

import (
	"math"
	"time"

	"github.com/noah-isme/slotswap-availability/internal/availability"
	"github.com/noah-isme/slotswap-availability/internal/dto"
	"github.com/noah-isme/slotswap-availability/pkg/config"
)

const dayEndLabel = "23:59:59.999"

// Proposal is a candidate slot after input parsing.
type Proposal struct {
	Start         time.Time
	End           *time.Time
	Locked        bool
	PendingSwapID string
}

// SchedulingPolicy layers the caller-side scheduling rules on the engine.
type SchedulingPolicy struct {
	MinDuration     time.Duration
	DefaultDuration time.Duration
	NoticeDismiss   time.Duration
	Location        *time.Location
}

// NewSchedulingPolicy builds a policy from configuration, filling unset values.
func NewSchedulingPolicy(cfg config.SchedulingConfig, loc *time.Location) SchedulingPolicy {
	p := SchedulingPolicy{
		MinDuration:     cfg.MinDuration,
		DefaultDuration: cfg.DefaultDuration,
		NoticeDismiss:   cfg.NoticeDismiss,
		Location:        loc,
	}
	if p.MinDuration <= 0 {
		p.MinDuration = 5 * time.Minute
	}
	if p.DefaultDuration <= 0 {
		p.DefaultDuration = 30 * time.Minute
	}
	if p.NoticeDismiss <= 0 {
		p.NoticeDismiss = 2500 * time.Millisecond
	}
	if p.Location == nil {
		p.Location = time.UTC
	}
	return p
}

// Plan checks a proposal against the blocked ranges. Checks stop at the first
// failure that leaves nothing to suggest; an end outside the window still gets
// a clamped suggestion and the overlap check. The overlap check runs on the
// requested start, so a start inside a block is rejected even though the plan
// carries the snapped start as a suggestion.
func (p SchedulingPolicy) Plan(prop Proposal, blocked []availability.TimeRange) dto.ProposalPlan {
	start := prop.Start.In(p.Location)
	plan := dto.ProposalPlan{Valid: true, RequestedStart: start, PendingSwapID: prop.PendingSwapID}

	if prop.Locked {
		plan.Reject(dto.ReasonEventLocked)
		return plan
	}

	if availability.FullyBlockedDays(blocked, p.Location).Has(availability.DayKeyOf(start, p.Location)) {
		plan.Reject(dto.ReasonDayFullyBlocked)
		return plan
	}

	win, ok := availability.FreeWindowFrom(start, availability.Merge(blocked))
	if !ok {
		plan.Reject(dto.ReasonNoWindow)
		return plan
	}
	plan.Window = toWindow(win)
	if win.Duration() < p.MinDuration {
		plan.Reject(dto.ReasonInsufficientWindow)
		return plan
	}

	snapped := win.Start
	plan.SnappedStart = &snapped

	var end time.Time
	switch {
	case prop.End == nil:
		end = win.Start.Add(p.DefaultDuration)
		if end.After(win.End) {
			end = win.End
		}
		plan.SuggestedEnd = &end
	case prop.End.After(win.End):
		end = win.End
		plan.SuggestedEnd = &end
		plan.Reject(dto.ReasonEndOutsideWindow)
	case prop.End.Before(win.Start):
		end = win.Start
		plan.SuggestedEnd = &end
		plan.Reject(dto.ReasonEndOutsideWindow)
	default:
		end = prop.End.In(p.Location)
	}

	if availability.OverlapsAny(start, end, blocked) {
		plan.Reject(dto.ReasonOverlapsExisting)
	}
	return plan
}

// Describe exposes the policy to clients.
func (p SchedulingPolicy) Describe() dto.PolicyResponse {
	return dto.PolicyResponse{
		Timezone:               p.Location.String(),
		MinDurationMinutes:     int(p.MinDuration / time.Minute),
		DefaultDurationMinutes: int(p.DefaultDuration / time.Minute),
		NoticeDismissMillis:    p.NoticeDismiss.Milliseconds(),
		DayEnd:                 dayEndLabel,
	}
}

func toWindow(w availability.FreeWindow) *dto.Window {
	return &dto.Window{
		Start:           w.Start,
		End:             w.End,
		DurationMinutes: roundMinutes(w.Duration()),
	}
}

// roundMinutes rounds so a window ending at 23:59:59.999 counts its last minute.
func roundMinutes(d time.Duration) int {
	return int(math.Round(d.Minutes()))
}
