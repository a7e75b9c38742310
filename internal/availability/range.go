// Package availability computes free and blocked time from a subject's busy ranges.
//
// Every function in this package is pure: inputs are never mutated and no state
// is kept between calls, so results can be shared freely across goroutines.
package availability

import (
	"sort"
	"time"
)

// TimeRange is a blocked interval. A range is usable only when Start is before End.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether both bounds are set and Start precedes End.
func (r TimeRange) Valid() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && r.Start.Before(r.End)
}

// Duration returns the length of the range.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// MergedSet is an ascending list of ranges where every range ends strictly
// before the next one starts.
type MergedSet []TimeRange

// Merge drops malformed ranges, sorts the rest by start and folds overlapping
// or touching ranges together.
func Merge(ranges []TimeRange) MergedSet {
	parsed := make([]TimeRange, 0, len(ranges))
	for _, r := range ranges {
		if r.Valid() {
			parsed = append(parsed, r)
		}
	}
	if len(parsed) == 0 {
		return MergedSet{}
	}

	sort.SliceStable(parsed, func(i, j int) bool {
		return parsed[i].Start.Before(parsed[j].Start)
	})

	out := MergedSet{parsed[0]}
	for _, cur := range parsed[1:] {
		last := &out[len(out)-1]
		if !cur.Start.After(last.End) {
			if cur.End.After(last.End) {
				last.End = cur.End
			}
			continue
		}
		out = append(out, cur)
	}
	return out
}

// Contains reports whether t falls inside one of the half-open ranges of the set.
func (m MergedSet) Contains(t time.Time) bool {
	idx := sort.Search(len(m), func(i int) bool {
		return m[i].End.After(t)
	})
	return idx < len(m) && !t.Before(m[idx].Start)
}

// Ranges returns the set as a plain slice copy.
func (m MergedSet) Ranges() []TimeRange {
	out := make([]TimeRange, len(m))
	copy(out, m)
	return out
}

// Overlaps is the half-open intersection test: ranges that only touch do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// OverlapsAny reports whether [start, end) intersects any of the given ranges.
// Malformed ranges are ignored.
func OverlapsAny(start, end time.Time, ranges []TimeRange) bool {
	for _, r := range ranges {
		if !r.Valid() {
			continue
		}
		if Overlaps(start, end, r.Start, r.End) {
			return true
		}
	}
	return false
}
