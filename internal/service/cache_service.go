package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/slotswap-availability/pkg/errors"
)

const cacheNamespace = "availability"

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// RangesKey is the cache key holding a user's gathered blocked ranges.
func RangesKey(userID string) string {
	return fmt.Sprintf("%s:%s:ranges", cacheNamespace, userID)
}

// CacheService wraps the repository with metrics and an on/off switch.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get attempts to retrieve a cached entry. It returns true when the cache was hit.
// Read failures other than a miss are logged and reported as a miss.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	return true
}

// Set stores the value in cache. Failures are logged, never returned, so a
// broken cache degrades to recomputation.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if !s.Enabled() {
		return
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateUsers drops cached ranges for the users, or for everyone when none are given.
func (s *CacheService) InvalidateUsers(ctx context.Context, userIDs ...string) error {
	if !s.Enabled() {
		return nil
	}
	var err error
	if len(userIDs) == 0 {
		err = s.repo.DeleteByPattern(ctx, RangesKey("*"))
	} else {
		keys := make([]string, 0, len(userIDs))
		for _, id := range userIDs {
			keys = append(keys, RangesKey(id))
		}
		err = s.repo.Delete(ctx, keys...)
	}
	if err != nil {
		s.logger.Warn("cache invalidate failed", zap.Strings("users", userIDs), zap.Error(err))
		return err
	}
	s.metrics.CountInvalidation()
	return nil
}
