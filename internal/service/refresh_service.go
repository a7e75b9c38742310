package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/slotswap-availability/internal/models"
	"github.com/noah-isme/slotswap-availability/pkg/jobs"
)

const invalidateJobType = "availability.invalidate"

type cacheInvalidator interface {
	Invalidate(ctx context.Context, userIDs ...string) error
}

// RefreshService turns staleness signals into cache invalidation jobs.
type RefreshService struct {
	target  cacheInvalidator
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewRefreshService constructs the service and its worker queue.
func NewRefreshService(target cacheInvalidator, metrics *MetricsService, logger *zap.Logger, cfg jobs.QueueConfig) *RefreshService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	s := &RefreshService{target: target, metrics: metrics, logger: logger}
	s.queue = jobs.NewQueue("availability-refresh", s.process, cfg)
	return s
}

// Start launches the workers.
func (s *RefreshService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop waits for the workers to exit.
func (s *RefreshService) Stop() {
	s.queue.Stop()
}

// HandleSignal enqueues one invalidation for the users named by the signal.
// A signal that repeats one already waiting is dropped.
func (s *RefreshService) HandleSignal(sig models.StaleSignal) {
	s.metrics.CountSignal(string(sig.Type))

	users := normalizeUsers(sig.UserIDs)
	key := "*"
	if len(users) > 0 {
		key = strings.Join(users, ",")
	}

	err := s.queue.Enqueue(jobs.Job{Type: invalidateJobType, Key: key, Payload: users})
	switch {
	case err == nil:
		s.logger.Debug("availability refresh queued", zap.String("signal", string(sig.Type)), zap.Strings("users", users))
	case errors.Is(err, jobs.ErrDuplicate):
		s.logger.Debug("availability refresh already pending", zap.String("key", key))
	default:
		s.logger.Warn("failed to queue availability refresh", zap.String("signal", string(sig.Type)), zap.Error(err))
	}
}

// OnFeedChange adapts calendar feed refreshes to signals.
func (s *RefreshService) OnFeedChange(_ context.Context, userIDs []string) {
	if len(userIDs) == 0 {
		return
	}
	s.HandleSignal(models.StaleSignal{Type: models.SignalFeedRefresh, UserIDs: userIDs, ReceivedAt: time.Now().UTC()})
}

func (s *RefreshService) process(ctx context.Context, job jobs.Job) error {
	users, _ := job.Payload.([]string)
	return s.target.Invalidate(ctx, users...)
}

func normalizeUsers(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
