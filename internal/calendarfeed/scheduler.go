package calendarfeed

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ChangeFunc receives users whose feed ranges changed after a refresh.
type ChangeFunc func(ctx context.Context, userIDs []string)

// Scheduler refreshes the store on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	store    *Store
	onChange ChangeFunc
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewScheduler validates spec (standard five-field cron) and wires the refresh job.
func NewScheduler(store *Store, spec string, loc *time.Location, onChange ChangeFunc, logger *zap.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		store:    store,
		onChange: onChange,
		logger:   logger,
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start performs an initial refresh and then runs on schedule.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.run()
	s.cron.Start()
	s.logger.Info("calendar feed scheduler started", zap.Int("users", len(s.store.Users())))
}

// Stop halts scheduling and waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.cron.Stop().Done()
}

// RunOnce refreshes immediately.
func (s *Scheduler) RunOnce() {
	s.run()
}

func (s *Scheduler) run() {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	changed, err := s.store.RefreshAll(ctx)
	if err != nil {
		s.logger.Warn("calendar feed refresh incomplete", zap.Error(err))
	}
	if len(changed) > 0 && s.onChange != nil {
		s.onChange(ctx, changed)
	}
	s.store.fetcher.Prune()
}
