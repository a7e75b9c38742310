// Package ratelimit throttles requests per caller with token buckets.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	appErrors "github.com/noah-isme/slotswap-availability/pkg/errors"
	"github.com/noah-isme/slotswap-availability/pkg/response"
)

// ErrTooManyRequests is returned once a caller exhausts its bucket.
var ErrTooManyRequests = appErrors.New("RATE_LIMITED", http.StatusTooManyRequests, "too many requests, try again later")

// KeyFunc picks the bucket for a request.
type KeyFunc func(*gin.Context) string

// Store hands out one limiter per key and forgets idle keys.
type Store struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	idle     time.Duration
	limiters map[string]*entry
	now      func() time.Time
}

type entry struct {
	limiter *rate.Limiter
	seen    time.Time
}

// NewStore builds a store allowing rps requests per second with the given burst.
func NewStore(rps float64, burst int, idle time.Duration) *Store {
	if burst <= 0 {
		burst = 1
	}
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	return &Store{
		limit:    rate.Limit(rps),
		burst:    burst,
		idle:     idle,
		limiters: make(map[string]*entry),
		now:      time.Now,
	}
}

// Allow consumes a token for key.
func (s *Store) Allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.limiters[key] = e
	}
	e.seen = now
	s.sweep(now)
	return e.limiter.AllowN(now, 1)
}

// Len reports tracked keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

func (s *Store) sweep(now time.Time) {
	for key, e := range s.limiters {
		if now.Sub(e.seen) > s.idle {
			delete(s.limiters, key)
		}
	}
}

// Middleware rejects requests whose bucket is empty. A nil store disables limiting.
func Middleware(store *Store, key KeyFunc, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if store == nil {
			c.Next()
			return
		}
		k := key(c)
		if k == "" {
			k = c.ClientIP()
		}
		if !store.Allow(k) {
			logger.Warn("rate limit exceeded", zap.String("key", k), zap.String("path", c.FullPath()))
			response.Error(c, ErrTooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}
