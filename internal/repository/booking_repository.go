package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/slotswap-availability/internal/models"
)

const (
	busyRangesQuery = `SELECT id, start_time, end_time FROM events WHERE user_id = $1 AND end_time > start_time ORDER BY start_time`
	eventsQuery     = `SELECT id, user_id, title, start_time, end_time, status FROM events WHERE user_id = $1 ORDER BY start_time`
	swapsQuery      = `SELECT s.id, COALESCE(s.from_event_id, '') AS from_event_id, COALESCE(s.to_event_id, '') AS to_event_id, s.status
FROM swaps s
WHERE s.from_event_id IN (SELECT id FROM events WHERE user_id = $1)
   OR s.to_event_id IN (SELECT id FROM events WHERE user_id = $1)`
)

// BookingRepository reads events and swaps straight from the booking
// service's database. It never writes.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs a BookingRepository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// BusyRanges returns every well-formed event interval owned by the subject.
func (r *BookingRepository) BusyRanges(ctx context.Context, subject models.Subject) ([]models.BlockedRange, error) {
	var ranges []models.BlockedRange
	if err := r.db.SelectContext(ctx, &ranges, busyRangesQuery, subject.UserID); err != nil {
		return nil, fmt.Errorf("list busy ranges: %w", err)
	}
	for i := range ranges {
		ranges[i].Origin = models.OriginBooking
	}
	return ranges, nil
}

// Events returns the subject's events ordered by start.
func (r *BookingRepository) Events(ctx context.Context, subject models.Subject) ([]models.Event, error) {
	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, eventsQuery, subject.UserID); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// SwapLocks folds every swap touching one of the subject's events.
func (r *BookingRepository) SwapLocks(ctx context.Context, subject models.Subject) (models.SwapLocks, error) {
	var swaps []models.Swap
	if err := r.db.SelectContext(ctx, &swaps, swapsQuery, subject.UserID); err != nil {
		return models.SwapLocks{}, fmt.Errorf("list swaps: %w", err)
	}
	return models.NewSwapLocks(swaps), nil
}

// Ping verifies the connection for readiness checks.
func (r *BookingRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
