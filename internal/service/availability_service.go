package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/slotswap-availability/internal/availability"
	"github.com/noah-isme/slotswap-availability/internal/dto"
	"github.com/noah-isme/slotswap-availability/internal/models"
	appErrors "github.com/noah-isme/slotswap-availability/pkg/errors"
)

// RangeSource yields a subject's busy ranges.
type RangeSource interface {
	BusyRanges(ctx context.Context, subject models.Subject) ([]models.BlockedRange, error)
}

// BookingSource is the authoritative store of a subject's events and swaps.
// The REST client and the Postgres adapter both satisfy it.
type BookingSource interface {
	RangeSource
	Events(ctx context.Context, subject models.Subject) ([]models.Event, error)
	SwapLocks(ctx context.Context, subject models.Subject) (models.SwapLocks, error)
}

// AvailabilityServiceConfig tunes the availability service.
type AvailabilityServiceConfig struct {
	SourceName  string
	CacheTTL    time.Duration
	MaxSpanDays int
	DefaultDays int
}

// AvailabilityService gathers busy ranges and answers availability questions.
type AvailabilityService struct {
	booking   BookingSource
	feeds     []RangeSource
	cache     *CacheService
	metrics   *MetricsService
	policy    SchedulingPolicy
	validator *validator.Validate
	logger    *zap.Logger
	cfg       AvailabilityServiceConfig
	now       func() time.Time
}

var localLayouts = []string{"2006-01-02T15:04", "2006-01-02T15:04:05", "2006-01-02 15:04"}

// NewAvailabilityService constructs the service. feeds may be empty.
func NewAvailabilityService(booking BookingSource, feeds []RangeSource, cache *CacheService, metrics *MetricsService, policy SchedulingPolicy, validate *validator.Validate, logger *zap.Logger, cfg AvailabilityServiceConfig) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SourceName == "" {
		cfg.SourceName = "booking"
	}
	if cfg.MaxSpanDays <= 0 {
		cfg.MaxSpanDays = 92
	}
	if cfg.DefaultDays <= 0 {
		cfg.DefaultDays = 30
	}
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	return &AvailabilityService{
		booking:   booking,
		feeds:     feeds,
		cache:     cache,
		metrics:   metrics,
		policy:    policy,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Location returns the zone used for day bucketing.
func (s *AvailabilityService) Location() *time.Location {
	return s.policy.Location
}

// Policy describes the scheduling policy.
func (s *AvailabilityService) Policy() dto.PolicyResponse {
	return s.policy.Describe()
}

// BlockedRanges returns every busy range of the subject and whether it was served from cache.
func (s *AvailabilityService) BlockedRanges(ctx context.Context, subject models.Subject) ([]models.BlockedRange, bool, error) {
	if subject.UserID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrUnauthorized, "missing subject")
	}

	key := RangesKey(subject.UserID)
	var cached []models.BlockedRange
	if s.cache.Get(ctx, key, &cached) {
		return cached, true, nil
	}

	start := time.Now()
	ranges, err := s.booking.BusyRanges(ctx, subject)
	s.metrics.ObserveSource(s.cfg.SourceName, time.Since(start), err)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, false, err
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to load busy times")
	}

	for _, feed := range s.feeds {
		start = time.Now()
		extra, err := feed.BusyRanges(ctx, subject)
		s.metrics.ObserveSource("calendar_feed", time.Since(start), err)
		if err != nil {
			s.logger.Warn("calendar feed unavailable", zap.String("user_id", subject.UserID), zap.Error(err))
			continue
		}
		ranges = append(ranges, extra...)
	}

	s.cache.Set(ctx, key, ranges, s.cfg.CacheTTL)
	return ranges, false, nil
}

// BlockedDays lists the fully blocked days between from and to inclusive.
func (s *AvailabilityService) BlockedDays(ctx context.Context, subject models.Subject, from, to string) (*dto.BlockedDaysResponse, bool, error) {
	first, last, err := s.dayRange(from, to)
	if err != nil {
		return nil, false, err
	}
	ranges, cached, err := s.BlockedRanges(ctx, subject)
	if err != nil {
		return nil, false, err
	}

	full := availability.FullyBlockedDays(models.TimeRanges(ranges), s.Location())
	s.metrics.CountEngine("blocked_days")

	days := make([]string, 0)
	for _, key := range full.Keys() {
		if key >= first && key <= last {
			days = append(days, key.String())
		}
	}
	return &dto.BlockedDaysResponse{
		From:     first.String(),
		To:       last.String(),
		Timezone: s.Location().String(),
		Days:     days,
	}, cached, nil
}

// FreeWindow finds the free window beginning at or after start.
func (s *AvailabilityService) FreeWindow(ctx context.Context, subject models.Subject, rawStart string) (*dto.FreeWindowResponse, bool, error) {
	start, err := ParseInstant(rawStart, s.Location())
	if err != nil {
		return nil, false, err
	}
	ranges, cached, err := s.BlockedRanges(ctx, subject)
	if err != nil {
		return nil, false, err
	}

	win, ok := availability.FreeWindowFrom(start, availability.Merge(models.TimeRanges(ranges)))
	s.metrics.CountEngine("free_window")

	resp := &dto.FreeWindowResponse{Start: start, Available: ok}
	if ok {
		resp.Window = toWindow(win)
	}
	return resp, cached, nil
}

// Validate plans a proposed slot. Rejections are part of the returned plan;
// only malformed input or source failures produce an error.
func (s *AvailabilityService) Validate(ctx context.Context, subject models.Subject, req dto.ValidateProposalRequest) (*dto.ProposalPlan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid proposal payload")
	}

	start, err := ParseInstant(req.Start, s.Location())
	if err != nil {
		return nil, err
	}
	prop := Proposal{Start: start}
	if strings.TrimSpace(req.End) != "" {
		end, err := ParseInstant(req.End, s.Location())
		if err != nil {
			return nil, err
		}
		if !end.After(start) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "end must be after start")
		}
		prop.End = &end
	}

	ranges, _, err := s.BlockedRanges(ctx, subject)
	if err != nil {
		return nil, err
	}

	if req.EventID != "" {
		ranges, err = s.applyEdit(ctx, subject, req.EventID, ranges, &prop)
		if err != nil {
			return nil, err
		}
	}

	plan := s.policy.Plan(prop, models.TimeRanges(ranges))
	s.metrics.CountEngine("validate")
	reason := ""
	if len(plan.Reasons) > 0 {
		reason = string(plan.Reasons[0])
	}
	s.metrics.CountPlan(reason)
	return &plan, nil
}

// applyEdit drops the edited event's own range and marks swap locks.
// Busy-time feeds do not always carry event ids, so a range with the same
// bounds as the event counts as the event's own.
func (s *AvailabilityService) applyEdit(ctx context.Context, subject models.Subject, eventID string, ranges []models.BlockedRange, prop *Proposal) ([]models.BlockedRange, error) {
	start := time.Now()
	events, err := s.booking.Events(ctx, subject)
	s.metrics.ObserveSource(s.cfg.SourceName, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	var target *models.Event
	for i := range events {
		if events[i].ID == eventID {
			target = &events[i]
			break
		}
	}
	if target == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
	}

	start = time.Now()
	locks, err := s.booking.SwapLocks(ctx, subject)
	s.metrics.ObserveSource(s.cfg.SourceName, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	prop.Locked = locks.IsLocked(eventID)
	if swapID, ok := locks.PendingSwap(eventID); ok {
		prop.PendingSwapID = swapID
	}

	kept := make([]models.BlockedRange, 0, len(ranges))
	for _, r := range ranges {
		if r.EventID == eventID {
			continue
		}
		if r.Origin != models.OriginFeed && r.Start.Equal(target.Start) && r.End.Equal(target.End) {
			continue
		}
		kept = append(kept, r)
	}
	return kept, nil
}

// DaySummaries reports free and busy time per day between from and to inclusive.
func (s *AvailabilityService) DaySummaries(ctx context.Context, subject models.Subject, from, to string) ([]dto.DaySummary, bool, error) {
	first, last, err := s.dayRange(from, to)
	if err != nil {
		return nil, false, err
	}
	ranges, cached, err := s.BlockedRanges(ctx, subject)
	if err != nil {
		return nil, false, err
	}

	loc := s.Location()
	raw := models.TimeRanges(ranges)
	merged := availability.Merge(raw)
	full := availability.FullyBlockedDays(raw, loc)

	summaries := make([]dto.DaySummary, 0)
	dayStart, _ := first.Bounds(loc)
	for key := first; key <= last; key = availability.DayKeyOf(dayStart, loc) {
		next := dayStart.AddDate(0, 0, 1)
		summary := dto.DaySummary{Day: key.String(), FullyBlocked: full.Has(key), Windows: make([]dto.Window, 0)}

		var free time.Duration
		var largest *dto.Window
		for _, w := range availability.FreeWindowsOn(dayStart, merged) {
			win := toWindow(w)
			summary.Windows = append(summary.Windows, *win)
			free += w.Duration()
			if largest == nil || w.Duration() > largest.End.Sub(largest.Start) {
				largest = win
			}
		}
		summary.LargestWindow = largest
		summary.FreeMinutes = roundMinutes(free)

		var busy time.Duration
		for _, r := range merged {
			if r.End.After(dayStart) && r.Start.Before(next) {
				busy += minTime(r.End, next).Sub(maxTime(r.Start, dayStart))
			}
		}
		summary.BusyMinutes = roundMinutes(busy)

		for _, r := range raw {
			if r.Valid() && r.End.After(dayStart) && r.Start.Before(next) {
				summary.BlockedRangeCount++
			}
		}

		summaries = append(summaries, summary)
		dayStart = next
	}
	s.metrics.CountEngine("day_summary")
	return summaries, cached, nil
}

// Invalidate drops cached ranges of the users, or of everyone when none are given.
func (s *AvailabilityService) Invalidate(ctx context.Context, userIDs ...string) error {
	if err := s.cache.InvalidateUsers(ctx, userIDs...); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to invalidate availability cache")
	}
	return nil
}

func (s *AvailabilityService) dayRange(from, to string) (availability.DayKey, availability.DayKey, error) {
	loc := s.Location()
	var first, last availability.DayKey
	var err error

	if strings.TrimSpace(from) == "" {
		first = availability.DayKeyOf(s.now(), loc)
	} else if first, err = availability.ParseDayKey(strings.TrimSpace(from)); err != nil {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD")
	}

	firstStart, _ := first.Bounds(loc)
	if strings.TrimSpace(to) == "" {
		last = availability.DayKeyOf(firstStart.AddDate(0, 0, s.cfg.DefaultDays-1), loc)
	} else if last, err = availability.ParseDayKey(strings.TrimSpace(to)); err != nil {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "to must be YYYY-MM-DD")
	}

	if last < first {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "to must not precede from")
	}
	lastStart, _ := last.Bounds(loc)
	if lastStart.Sub(firstStart) >= time.Duration(s.cfg.MaxSpanDays)*24*time.Hour {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "requested range is too long")
	}
	return first, last, nil
}

// ParseInstant reads RFC3339 timestamps or local wall-clock times in loc.
func ParseInstant(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "time is required")
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid time "+raw)
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
