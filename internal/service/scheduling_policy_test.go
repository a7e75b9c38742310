package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/slotswap-availability/internal/availability"
	"github.com/noah-isme/slotswap-availability/internal/dto"
	"github.com/noah-isme/slotswap-availability/pkg/config"
)

func at(day, clock string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", day+" "+clock, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func span(day, from, to string) availability.TimeRange {
	return availability.TimeRange{Start: at(day, from), End: at(day, to)}
}

func testPolicy() SchedulingPolicy {
	return NewSchedulingPolicy(config.SchedulingConfig{}, time.UTC)
}

func TestPolicyDefaults(t *testing.T) {
	p := testPolicy()
	assert.Equal(t, 5*time.Minute, p.MinDuration)
	assert.Equal(t, 30*time.Minute, p.DefaultDuration)

	desc := p.Describe()
	assert.Equal(t, "UTC", desc.Timezone)
	assert.Equal(t, 5, desc.MinDurationMinutes)
	assert.Equal(t, 30, desc.DefaultDurationMinutes)
	assert.Equal(t, int64(2500), desc.NoticeDismissMillis)
	assert.Equal(t, "23:59:59.999", desc.DayEnd)
}

func TestPlanSnapsStartAndSuggestsEnd(t *testing.T) {
	blocked := []availability.TimeRange{span("2024-01-01", "09:00", "10:00"), span("2024-01-01", "12:00", "13:00")}

	plan := testPolicy().Plan(Proposal{Start: at("2024-01-01", "09:30")}, blocked)

	assert.False(t, plan.Valid)
	assert.Equal(t, []dto.PlanReason{dto.ReasonOverlapsExisting}, plan.Reasons)
	require.NotNil(t, plan.SnappedStart)
	assert.Equal(t, at("2024-01-01", "10:00"), *plan.SnappedStart)
	require.NotNil(t, plan.SuggestedEnd)
	assert.Equal(t, at("2024-01-01", "10:30"), *plan.SuggestedEnd)
	require.NotNil(t, plan.Window)
	assert.Equal(t, at("2024-01-01", "12:00"), plan.Window.End)
	assert.Equal(t, 120, plan.Window.DurationMinutes)
}

func TestPlanSuggestsEndForFreeStart(t *testing.T) {
	blocked := []availability.TimeRange{span("2024-01-01", "09:00", "10:00")}

	plan := testPolicy().Plan(Proposal{Start: at("2024-01-01", "10:00")}, blocked)

	assert.True(t, plan.Valid)
	assert.Empty(t, plan.Reasons)
	require.NotNil(t, plan.SuggestedEnd)
	assert.Equal(t, at("2024-01-01", "10:30"), *plan.SuggestedEnd)
}

func TestPlanRejectsStartInsideBlock(t *testing.T) {
	blocked := []availability.TimeRange{span("2024-01-01", "09:00", "10:00")}
	end := at("2024-01-01", "11:00")

	plan := testPolicy().Plan(Proposal{Start: at("2024-01-01", "09:30"), End: &end}, blocked)

	assert.False(t, plan.Valid)
	assert.Equal(t, []dto.PlanReason{dto.ReasonOverlapsExisting}, plan.Reasons)
	assert.Equal(t, at("2024-01-01", "09:30"), plan.RequestedStart)
	require.NotNil(t, plan.SnappedStart)
	assert.Equal(t, at("2024-01-01", "10:00"), *plan.SnappedStart)
	assert.Nil(t, plan.SuggestedEnd)
}

func TestPlanSuggestionCappedByWindow(t *testing.T) {
	blocked := []availability.TimeRange{span("2024-01-01", "10:10", "11:00")}

	plan := testPolicy().Plan(Proposal{Start: at("2024-01-01", "10:00")}, blocked)

	assert.True(t, plan.Valid)
	require.NotNil(t, plan.SuggestedEnd)
	assert.Equal(t, at("2024-01-01", "10:10"), *plan.SuggestedEnd)
}

func TestPlanRejectsFullyBlockedDay(t *testing.T) {
	blocked := []availability.TimeRange{{Start: at("2024-01-01", "00:00"), End: at("2024-01-02", "00:00")}}

	plan := testPolicy().Plan(Proposal{Start: at("2024-01-01", "15:00")}, blocked)

	assert.False(t, plan.Valid)
	assert.Equal(t, []dto.PlanReason{dto.ReasonDayFullyBlocked}, plan.Reasons)
	assert.Equal(t, []string{dto.ReasonDayFullyBlocked.Message()}, plan.Messages)
	assert.Nil(t, plan.Window)
}

func TestPlanRejectsWhenNothingLeft(t *testing.T) {
	blocked := []availability.TimeRange{{Start: at("2024-01-01", "18:00"), End: at("2024-01-02", "00:00")}}

	plan := testPolicy().Plan(Proposal{Start: at("2024-01-01", "19:00")}, blocked)

	assert.False(t, plan.Valid)
	assert.Equal(t, []dto.PlanReason{dto.ReasonNoWindow}, plan.Reasons)
}

func TestPlanRejectsShortWindow(t *testing.T) {
	blocked := []availability.TimeRange{span("2024-01-01", "09:00", "10:00"), span("2024-01-01", "10:03", "11:00")}

	plan := testPolicy().Plan(Proposal{Start: at("2024-01-01", "09:15")}, blocked)

	assert.False(t, plan.Valid)
	assert.Equal(t, []dto.PlanReason{dto.ReasonInsufficientWindow}, plan.Reasons)
	require.NotNil(t, plan.Window)
	assert.Equal(t, 3, plan.Window.DurationMinutes)
	assert.Nil(t, plan.SnappedStart)
}

func TestPlanClampsEndOutsideWindow(t *testing.T) {
	blocked := []availability.TimeRange{span("2024-01-01", "11:00", "12:00")}
	end := at("2024-01-01", "11:30")

	plan := testPolicy().Plan(Proposal{Start: at("2024-01-01", "10:00"), End: &end}, blocked)

	assert.False(t, plan.Valid)
	assert.Equal(t, []dto.PlanReason{dto.ReasonEndOutsideWindow}, plan.Reasons)
	require.NotNil(t, plan.SuggestedEnd)
	assert.Equal(t, at("2024-01-01", "11:00"), *plan.SuggestedEnd)
}

func TestPlanClampsEndBeforeWindow(t *testing.T) {
	end := at("2024-01-01", "09:00")

	plan := testPolicy().Plan(Proposal{Start: at("2024-01-01", "10:00"), End: &end}, nil)

	assert.False(t, plan.Valid)
	assert.Equal(t, []dto.PlanReason{dto.ReasonEndOutsideWindow}, plan.Reasons)
	require.NotNil(t, plan.SuggestedEnd)
	assert.Equal(t, at("2024-01-01", "10:00"), *plan.SuggestedEnd)
}

func TestPlanAcceptsEndInsideWindow(t *testing.T) {
	blocked := []availability.TimeRange{span("2024-01-01", "11:00", "12:00")}
	end := at("2024-01-01", "11:00")

	plan := testPolicy().Plan(Proposal{Start: at("2024-01-01", "10:00"), End: &end}, blocked)

	assert.True(t, plan.Valid)
	assert.Empty(t, plan.Reasons)
	assert.Nil(t, plan.SuggestedEnd)
}

func TestPlanRejectsLockedEvent(t *testing.T) {
	plan := testPolicy().Plan(Proposal{Start: at("2024-01-01", "10:00"), Locked: true, PendingSwapID: "swap-1"}, nil)

	assert.False(t, plan.Valid)
	assert.Equal(t, []dto.PlanReason{dto.ReasonEventLocked}, plan.Reasons)
	assert.Equal(t, "swap-1", plan.PendingSwapID)
}

func TestPlanUsesConfiguredZone(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)
	p := NewSchedulingPolicy(config.SchedulingConfig{}, loc)

	// Jakarta day 2024-01-01 runs from 2023-12-31T17:00Z to 2024-01-01T17:00Z.
	blocked := []availability.TimeRange{{
		Start: time.Date(2023, 12, 31, 17, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 1, 17, 0, 0, 0, time.UTC),
	}}

	plan := p.Plan(Proposal{Start: time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)}, blocked)

	assert.Equal(t, []dto.PlanReason{dto.ReasonDayFullyBlocked}, plan.Reasons)
	assert.Equal(t, loc, plan.RequestedStart.Location())
}
