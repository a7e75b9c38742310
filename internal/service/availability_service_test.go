package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/slotswap-availability/internal/dto"
	"github.com/noah-isme/slotswap-availability/internal/models"
	"github.com/noah-isme/slotswap-availability/pkg/config"
	appErrors "github.com/noah-isme/slotswap-availability/pkg/errors"
)

type fakeBooking struct {
	ranges    []models.BlockedRange
	events    []models.Event
	swaps     []models.Swap
	err       error
	rangeHits int
}

func (f *fakeBooking) BusyRanges(context.Context, models.Subject) ([]models.BlockedRange, error) {
	f.rangeHits++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.BlockedRange, len(f.ranges))
	copy(out, f.ranges)
	return out, nil
}

func (f *fakeBooking) Events(context.Context, models.Subject) ([]models.Event, error) {
	return f.events, nil
}

func (f *fakeBooking) SwapLocks(context.Context, models.Subject) (models.SwapLocks, error) {
	return models.NewSwapLocks(f.swaps), nil
}

type fakeFeed struct {
	ranges []models.BlockedRange
	err    error
}

func (f fakeFeed) BusyRanges(context.Context, models.Subject) ([]models.BlockedRange, error) {
	return f.ranges, f.err
}

func busy(day, from, to string) models.BlockedRange {
	return models.BlockedRange{Origin: models.OriginBooking, Start: at(day, from), End: at(day, to)}
}

var subject = models.Subject{UserID: "user-1", Email: "a@example.com", Token: "t"}

func newTestAvailability(booking BookingSource, feeds []RangeSource, cache *CacheService) *AvailabilityService {
	svc := NewAvailabilityService(booking, feeds, cache, NewMetricsService(), NewSchedulingPolicy(config.SchedulingConfig{}, time.UTC), nil, nil, AvailabilityServiceConfig{SourceName: "booking_rest"})
	svc.now = func() time.Time { return at("2024-01-01", "08:00") }
	return svc
}

func TestBlockedRangesCachesCombinedSources(t *testing.T) {
	booking := &fakeBooking{ranges: []models.BlockedRange{busy("2024-01-01", "09:00", "10:00")}}
	feed := fakeFeed{ranges: []models.BlockedRange{{Origin: models.OriginFeed, Start: at("2024-01-01", "12:00"), End: at("2024-01-01", "13:00")}}}
	repo := newMemoryCache()
	svc := newTestAvailability(booking, []RangeSource{feed}, NewCacheService(repo, nil, time.Minute, nil, true))
	ctx := context.Background()

	ranges, cached, err := svc.BlockedRanges(ctx, subject)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Len(t, ranges, 2)
	assert.True(t, repo.has(RangesKey("user-1")))

	ranges, cached, err = svc.BlockedRanges(ctx, subject)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Len(t, ranges, 2)
	assert.Equal(t, models.OriginFeed, ranges[1].Origin)
	assert.Equal(t, 1, booking.rangeHits)

	require.NoError(t, svc.Invalidate(ctx, "user-1"))
	_, cached, err = svc.BlockedRanges(ctx, subject)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, booking.rangeHits)
}

func TestBlockedRangesErrors(t *testing.T) {
	svc := newTestAvailability(&fakeBooking{err: errors.New("dial tcp: refused")}, nil, nil)

	_, _, err := svc.BlockedRanges(context.Background(), models.Subject{})
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, _, err = svc.BlockedRanges(context.Background(), subject)
	assert.ErrorIs(t, err, appErrors.ErrUpstream)

	svc = newTestAvailability(&fakeBooking{err: appErrors.Clone(appErrors.ErrUnauthorized, "token expired")}, nil, nil)
	_, _, err = svc.BlockedRanges(context.Background(), subject)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestBlockedRangesSkipsFailingFeed(t *testing.T) {
	booking := &fakeBooking{ranges: []models.BlockedRange{busy("2024-01-01", "09:00", "10:00")}}
	svc := newTestAvailability(booking, []RangeSource{fakeFeed{err: errors.New("boom")}}, nil)

	ranges, _, err := svc.BlockedRanges(context.Background(), subject)
	require.NoError(t, err)
	assert.Len(t, ranges, 1)
}

func TestBlockedDaysFiltersRange(t *testing.T) {
	booking := &fakeBooking{ranges: []models.BlockedRange{
		{Start: at("2024-01-02", "00:00"), End: at("2024-01-03", "00:00")},
		{Start: at("2024-01-05", "00:00"), End: at("2024-01-06", "00:00")},
		busy("2024-01-03", "09:00", "17:00"),
	}}
	svc := newTestAvailability(booking, nil, nil)

	resp, _, err := svc.BlockedDays(context.Background(), subject, "2024-01-01", "2024-01-04")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-02"}, resp.Days)
	assert.Equal(t, "UTC", resp.Timezone)

	resp, _, err = svc.BlockedDays(context.Background(), subject, "", "")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", resp.From)
	assert.Equal(t, "2024-01-30", resp.To)
	assert.Equal(t, []string{"2024-01-02", "2024-01-05"}, resp.Days)
}

func TestBlockedDaysRejectsBadRange(t *testing.T) {
	svc := newTestAvailability(&fakeBooking{}, nil, nil)
	ctx := context.Background()

	_, _, err := svc.BlockedDays(ctx, subject, "01/01/2024", "")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, _, err = svc.BlockedDays(ctx, subject, "2024-01-05", "2024-01-01")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, _, err = svc.BlockedDays(ctx, subject, "2024-01-01", "2024-12-31")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestFreeWindow(t *testing.T) {
	booking := &fakeBooking{ranges: []models.BlockedRange{busy("2024-01-01", "09:00", "10:00"), busy("2024-01-01", "12:00", "13:00")}}
	svc := newTestAvailability(booking, nil, nil)

	resp, _, err := svc.FreeWindow(context.Background(), subject, "2024-01-01T09:30")
	require.NoError(t, err)
	require.True(t, resp.Available)
	assert.Equal(t, at("2024-01-01", "10:00"), resp.Window.Start)
	assert.Equal(t, at("2024-01-01", "12:00"), resp.Window.End)

	_, _, err = svc.FreeWindow(context.Background(), subject, "tomorrow")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestValidateProposal(t *testing.T) {
	booking := &fakeBooking{ranges: []models.BlockedRange{busy("2024-01-01", "09:00", "10:00")}}
	svc := newTestAvailability(booking, nil, nil)
	ctx := context.Background()

	plan, err := svc.Validate(ctx, subject, dto.ValidateProposalRequest{Start: "2024-01-01T10:00:00Z", End: "2024-01-01T10:30:00Z"})
	require.NoError(t, err)
	assert.True(t, plan.Valid)
	assert.Equal(t, at("2024-01-01", "10:00"), *plan.SnappedStart)

	plan, err = svc.Validate(ctx, subject, dto.ValidateProposalRequest{Start: "2024-01-01T09:30:00Z", End: "2024-01-01T10:30:00Z"})
	require.NoError(t, err)
	assert.False(t, plan.Valid)
	assert.Equal(t, []dto.PlanReason{dto.ReasonOverlapsExisting}, plan.Reasons)
	assert.Equal(t, at("2024-01-01", "10:00"), *plan.SnappedStart)

	_, err = svc.Validate(ctx, subject, dto.ValidateProposalRequest{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Validate(ctx, subject, dto.ValidateProposalRequest{Start: "2024-01-01T11:00", End: "2024-01-01T10:00"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestValidateEditExcludesOwnRange(t *testing.T) {
	booking := &fakeBooking{
		ranges: []models.BlockedRange{busy("2024-01-01", "09:00", "10:00"), busy("2024-01-01", "11:00", "12:00")},
		events: []models.Event{{ID: "ev-1", Start: at("2024-01-01", "09:00"), End: at("2024-01-01", "10:00")}},
	}
	svc := newTestAvailability(booking, nil, nil)

	plan, err := svc.Validate(context.Background(), subject, dto.ValidateProposalRequest{
		Start:   "2024-01-01T09:15",
		End:     "2024-01-01T10:45",
		EventID: "ev-1",
	})
	require.NoError(t, err)
	assert.True(t, plan.Valid)
	assert.Equal(t, at("2024-01-01", "09:15"), *plan.SnappedStart)
}

func TestValidateEditLockedAndMissing(t *testing.T) {
	booking := &fakeBooking{
		events: []models.Event{{ID: "ev-1", Start: at("2024-01-01", "09:00"), End: at("2024-01-01", "10:00")}},
		swaps:  []models.Swap{{ID: "swap-9", FromEventID: "ev-1", ToEventID: "ev-2", Status: "pending"}},
	}
	svc := newTestAvailability(booking, nil, nil)
	ctx := context.Background()

	plan, err := svc.Validate(ctx, subject, dto.ValidateProposalRequest{Start: "2024-01-01T14:00", EventID: "ev-1"})
	require.NoError(t, err)
	assert.False(t, plan.Valid)
	assert.Equal(t, []dto.PlanReason{dto.ReasonEventLocked}, plan.Reasons)
	assert.Equal(t, "swap-9", plan.PendingSwapID)

	_, err = svc.Validate(ctx, subject, dto.ValidateProposalRequest{Start: "2024-01-01T14:00", EventID: "ev-404"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestDaySummaries(t *testing.T) {
	booking := &fakeBooking{ranges: []models.BlockedRange{
		busy("2024-01-01", "09:00", "10:00"),
		busy("2024-01-01", "09:30", "11:00"),
		{Start: at("2024-01-02", "00:00"), End: at("2024-01-03", "00:00")},
	}}
	svc := newTestAvailability(booking, nil, nil)

	days, _, err := svc.DaySummaries(context.Background(), subject, "2024-01-01", "2024-01-03")
	require.NoError(t, err)
	require.Len(t, days, 3)

	first := days[0]
	assert.Equal(t, "2024-01-01", first.Day)
	assert.False(t, first.FullyBlocked)
	assert.Equal(t, 120, first.BusyMinutes)
	assert.Equal(t, 1320, first.FreeMinutes)
	assert.Equal(t, 2, first.BlockedRangeCount)
	require.Len(t, first.Windows, 2)
	require.NotNil(t, first.LargestWindow)
	assert.Equal(t, at("2024-01-01", "11:00"), first.LargestWindow.Start)

	assert.True(t, days[1].FullyBlocked)
	assert.Equal(t, 0, days[1].FreeMinutes)
	assert.Empty(t, days[1].Windows)
	assert.Nil(t, days[1].LargestWindow)

	assert.Equal(t, 1440, days[2].FreeMinutes)
	assert.Equal(t, 0, days[2].BlockedRangeCount)
}

func TestParseInstant(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)

	local, err := ParseInstant("2024-01-01T09:30", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 2, 30, 0, 0, time.UTC), local.UTC())

	abs, err := ParseInstant("2024-01-01T09:30:00Z", loc)
	require.NoError(t, err)
	assert.Equal(t, loc, abs.Location())
	assert.Equal(t, time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC), abs.UTC())

	_, err = ParseInstant("", loc)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
