package availability

import (
	"sort"
	"time"
)

// DayKeyLayout is the layout of a DayKey.
const DayKeyLayout = "2006-01-02"

// DayKey identifies a calendar day in the subject's zone.
type DayKey string

// DayKeyOf returns the calendar day of t in loc. A nil loc keeps t's own location.
func DayKeyOf(t time.Time, loc *time.Location) DayKey {
	if loc != nil {
		t = t.In(loc)
	}
	return DayKey(t.Format(DayKeyLayout))
}

// ParseDayKey parses a YYYY-MM-DD string.
func ParseDayKey(raw string) (DayKey, error) {
	if _, err := time.Parse(DayKeyLayout, raw); err != nil {
		return "", err
	}
	return DayKey(raw), nil
}

// Bounds returns the first and last millisecond of the day in loc.
func (k DayKey) Bounds(loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(DayKeyLayout, string(k), loc)
	if err != nil {
		return time.Time{}, time.Time{}
	}
	return StartOfDay(d), EndOfDay(d)
}

func (k DayKey) String() string {
	return string(k)
}

// StartOfDay returns 00:00:00.000 of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59.999 of t's day in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

func nextDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}

// DaySet is a set of calendar days.
type DaySet map[DayKey]struct{}

// Has reports membership of key.
func (s DaySet) Has(key DayKey) bool {
	_, ok := s[key]
	return ok
}

// Keys returns the members in ascending order.
func (s DaySet) Keys() []DayKey {
	keys := make([]DayKey, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// FullyBlockedDays returns the days of loc whose blocked time, once merged and
// clipped to the day, is a single interval spanning the whole day.
func FullyBlockedDays(ranges []TimeRange, loc *time.Location) DaySet {
	if loc == nil {
		loc = time.UTC
	}

	byDay := make(map[DayKey][]TimeRange)
	for _, r := range Merge(ranges) {
		start := r.Start.In(loc)
		end := r.End.In(loc)
		last := DayKeyOf(end, nil)

		for d := StartOfDay(start); DayKeyOf(d, nil) <= last; d = nextDay(d) {
			dayStart, dayEnd := StartOfDay(d), EndOfDay(d)
			clip := TimeRange{Start: maxTime(start, dayStart), End: minTime(end, dayEnd)}
			if !clip.Start.Before(clip.End) {
				continue
			}
			key := DayKeyOf(d, nil)
			byDay[key] = append(byDay[key], clip)
		}
	}

	full := make(DaySet)
	for key, pieces := range byDay {
		merged := Merge(pieces)
		dayStart, dayEnd := key.Bounds(loc)
		if len(merged) == 1 && !merged[0].Start.After(dayStart) && !merged[0].End.Before(dayEnd) {
			full[key] = struct{}{}
		}
	}
	return full
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
