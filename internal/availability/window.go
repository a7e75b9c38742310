package availability

import "time"

// FreeWindow is a contiguous unblocked interval that never crosses a day boundary.
type FreeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns the length of the window.
func (w FreeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Contains reports whether t lies within the closed window.
func (w FreeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// FreeWindowFrom finds the free interval that starts at or after start, bounded by
// the next blocked range or the end of start's day. A start that lands inside a
// blocked range is moved to the end of that range first. It returns false when
// nothing is left of the day.
func FreeWindowFrom(start time.Time, merged MergedSet) (FreeWindow, bool) {
	s := start
	dayEnd := EndOfDay(start)

	for _, r := range merged {
		if !s.Before(r.Start) && s.Before(r.End) {
			s = r.End
		}
	}

	if !s.Before(dayEnd) {
		return FreeWindow{}, false
	}

	next := dayEnd
	for _, r := range merged {
		if r.Start.After(s) {
			next = r.Start
			break
		}
	}

	return FreeWindow{Start: s, End: minTime(next, dayEnd)}, true
}

// FreeWindowsOn lists every free window of the day containing t, in order.
func FreeWindowsOn(t time.Time, merged MergedSet) []FreeWindow {
	var out []FreeWindow
	cursor := StartOfDay(t)
	for {
		w, ok := FreeWindowFrom(cursor, merged)
		if !ok {
			return out
		}
		out = append(out, w)
		if !w.End.Before(EndOfDay(t)) {
			return out
		}
		cursor = w.End
	}
}
