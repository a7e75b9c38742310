package calendarfeed

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/noah-isme/slotswap-availability/internal/models"
)

const maxOccurrences = 2000

// Expand converts parsed events into blocked ranges intersecting [from, to).
// Recurring events are expanded with their EXDATEs removed and RECURRENCE-ID
// overrides substituted for the matching instance.
func Expand(events []vevent, from, to time.Time) ([]models.BlockedRange, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("expand window is empty: %s..%s", from, to)
	}

	overrides := make(map[string][]vevent)
	bases := make([]vevent, 0, len(events))
	for _, ev := range events {
		if ev.Recurrence != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		bases = append(bases, ev)
	}

	out := make([]models.BlockedRange, 0, len(bases))
	applied := make(map[*vevent]bool)
	emit := func(ev vevent, start, end time.Time) {
		if !end.After(start) || !end.After(from) || !start.Before(to) {
			return
		}
		out = append(out, models.BlockedRange{EventID: ev.UID, Origin: models.OriginFeed, Start: start, End: end})
	}

	for _, ev := range bases {
		if ev.RRule == "" {
			emit(ev, ev.Start, ev.End)
			continue
		}
		occurrences, err := occurrencesOf(ev, from, to)
		if err != nil {
			// an unreadable rule still blocks its first instance
			emit(ev, ev.Start, ev.End)
			continue
		}
		dur := ev.End.Sub(ev.Start)
		for _, start := range occurrences {
			if o := overrideFor(overrides[ev.UID], start); o != nil {
				applied[o] = true
				emit(*o, o.Start, o.End)
				continue
			}
			emit(ev, start, start.Add(dur))
		}
	}

	// overrides whose original instance fell outside the expansion still block their own time
	for _, list := range overrides {
		for i := range list {
			if !applied[&list[i]] {
				emit(list[i], list[i].Start, list[i].End)
			}
		}
	}
	return out, nil
}

func occurrencesOf(ev vevent, from, to time.Time) ([]time.Time, error) {
	rule, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		return nil, fmt.Errorf("parse rrule %q: %w", ev.RRule, err)
	}
	rule.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(rule)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// instances starting before the window may still overlap it
	after := from.Add(-ev.End.Sub(ev.Start)).In(ev.Start.Location())
	before := to.In(ev.Start.Location())
	times := set.Between(after, before, true)
	if len(times) > maxOccurrences {
		times = times[:maxOccurrences]
	}
	return times, nil
}

func overrideFor(list []vevent, start time.Time) *vevent {
	for i := range list {
		if list[i].Recurrence.Equal(start) {
			return &list[i]
		}
	}
	return nil
}
