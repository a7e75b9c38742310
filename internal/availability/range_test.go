package availability

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(t *testing.T, raw string) time.Time {
	t.Helper()
	parsed, err := time.ParseInLocation("2006-01-02T15:04", raw, time.UTC)
	require.NoError(t, err)
	return parsed
}

func rng(t *testing.T, start, end string) TimeRange {
	t.Helper()
	return TimeRange{Start: at(t, start), End: at(t, end)}
}

func TestMergeEmpty(t *testing.T) {
	assert.Empty(t, Merge(nil))
	assert.Empty(t, Merge([]TimeRange{}))
}

func TestMergeDropsMalformedRanges(t *testing.T) {
	got := Merge([]TimeRange{
		rng(t, "2024-01-01T10:00", "2024-01-01T09:00"),
		rng(t, "2024-01-01T11:00", "2024-01-01T11:00"),
		{Start: at(t, "2024-01-01T12:00")},
		{End: at(t, "2024-01-01T12:00")},
		rng(t, "2024-01-01T13:00", "2024-01-01T14:00"),
	})

	want := MergedSet{rng(t, "2024-01-01T13:00", "2024-01-01T14:00")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("merge mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeFoldsOverlappingAndTouching(t *testing.T) {
	input := []TimeRange{
		rng(t, "2024-01-01T15:00", "2024-01-01T16:00"),
		rng(t, "2024-01-01T09:00", "2024-01-01T10:00"),
		rng(t, "2024-01-01T09:30", "2024-01-01T11:00"),
		rng(t, "2024-01-01T11:00", "2024-01-01T12:00"),
		rng(t, "2024-01-01T09:45", "2024-01-01T09:50"),
	}
	original := append([]TimeRange(nil), input...)

	got := Merge(input)

	want := MergedSet{
		rng(t, "2024-01-01T09:00", "2024-01-01T12:00"),
		rng(t, "2024-01-01T15:00", "2024-01-01T16:00"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("merge mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(original, input); diff != "" {
		t.Fatalf("input was mutated (-want +got):\n%s", diff)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	input := []TimeRange{
		rng(t, "2024-01-02T08:00", "2024-01-02T09:00"),
		rng(t, "2024-01-01T22:00", "2024-01-02T01:00"),
		rng(t, "2024-01-01T23:00", "2024-01-01T23:30"),
		rng(t, "2024-01-02T09:00", "2024-01-02T09:15"),
	}

	once := Merge(input)
	twice := Merge(once)

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("merge not idempotent (-once +twice):\n%s", diff)
	}
}

func TestMergeOutputIsStrictlyDisjointAndCoversInput(t *testing.T) {
	input := []TimeRange{
		rng(t, "2024-03-01T10:00", "2024-03-01T10:30"),
		rng(t, "2024-03-01T10:30", "2024-03-01T11:00"),
		rng(t, "2024-03-01T08:00", "2024-03-01T09:00"),
		rng(t, "2024-03-01T12:00", "2024-03-01T18:00"),
		rng(t, "2024-03-01T13:00", "2024-03-01T14:00"),
		rng(t, "2024-03-01T17:59", "2024-03-01T19:00"),
	}

	merged := Merge(input)
	for i := 1; i < len(merged); i++ {
		assert.True(t, merged[i-1].End.Before(merged[i].Start), "ranges %d and %d must be disjoint", i-1, i)
	}

	for _, r := range input {
		for probe := r.Start; probe.Before(r.End); probe = probe.Add(5 * time.Minute) {
			covering := 0
			for _, m := range merged {
				if !probe.Before(m.Start) && probe.Before(m.End) {
					covering++
				}
			}
			assert.Equal(t, 1, covering, "instant %s must be covered exactly once", probe)
		}
	}
}

func TestMergedSetContains(t *testing.T) {
	merged := Merge([]TimeRange{
		rng(t, "2024-01-01T09:00", "2024-01-01T10:00"),
		rng(t, "2024-01-01T12:00", "2024-01-01T13:00"),
	})

	assert.True(t, merged.Contains(at(t, "2024-01-01T09:00")))
	assert.True(t, merged.Contains(at(t, "2024-01-01T12:30")))
	assert.False(t, merged.Contains(at(t, "2024-01-01T10:00")))
	assert.False(t, merged.Contains(at(t, "2024-01-01T11:00")))
	assert.False(t, merged.Contains(at(t, "2024-01-01T08:59")))
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name         string
		aStart, aEnd string
		bStart, bEnd string
		want         bool
	}{
		{"disjoint", "2024-01-01T09:00", "2024-01-01T10:00", "2024-01-01T11:00", "2024-01-01T12:00", false},
		{"touching", "2024-01-01T09:00", "2024-01-01T10:00", "2024-01-01T10:00", "2024-01-01T11:00", false},
		{"crossing", "2024-01-01T09:00", "2024-01-01T10:30", "2024-01-01T10:00", "2024-01-01T11:00", true},
		{"nested", "2024-01-01T09:00", "2024-01-01T12:00", "2024-01-01T10:00", "2024-01-01T11:00", true},
		{"identical", "2024-01-01T09:00", "2024-01-01T10:00", "2024-01-01T09:00", "2024-01-01T10:00", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a1, a2 := at(t, tc.aStart), at(t, tc.aEnd)
			b1, b2 := at(t, tc.bStart), at(t, tc.bEnd)
			assert.Equal(t, tc.want, Overlaps(a1, a2, b1, b2))
			assert.Equal(t, Overlaps(a1, a2, b1, b2), Overlaps(b1, b2, a1, a2), "overlap must be symmetric")
		})
	}
}

func TestOverlapsAnyIgnoresMalformed(t *testing.T) {
	ranges := []TimeRange{
		rng(t, "2024-01-01T12:00", "2024-01-01T09:00"),
		rng(t, "2024-01-01T14:00", "2024-01-01T15:00"),
	}

	assert.False(t, OverlapsAny(at(t, "2024-01-01T10:00"), at(t, "2024-01-01T11:00"), ranges))
	assert.True(t, OverlapsAny(at(t, "2024-01-01T13:30"), at(t, "2024-01-01T14:30"), ranges))
}
