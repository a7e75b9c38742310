package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/slotswap-availability/internal/models"
)

type runner interface {
	Run(ctx context.Context, userID, email string) error
}

// Hub keeps at most one stream per user that has recently asked for availability.
type Hub struct {
	sub    runner
	logger *zap.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
}

// NewHub constructs a Hub bound to ctx; cancelling ctx stops every stream.
func NewHub(ctx context.Context, sub runner, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	hctx, cancel := context.WithCancel(ctx)
	return &Hub{sub: sub, logger: logger, ctx: hctx, cancel: cancel, active: make(map[string]context.CancelFunc)}
}

// Ensure starts a stream for the subject unless one is already running.
func (h *Hub) Ensure(subject models.Subject) {
	if h == nil || subject.UserID == "" || subject.Email == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctx.Err() != nil {
		return
	}
	if _, ok := h.active[subject.UserID]; ok {
		return
	}
	ctx, cancel := context.WithCancel(h.ctx)
	h.active[subject.UserID] = cancel
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		err := h.sub.Run(ctx, subject.UserID, subject.Email)
		h.mu.Lock()
		delete(h.active, subject.UserID)
		h.mu.Unlock()
		cancel()
		if err != nil && ctx.Err() == nil {
			h.logger.Warn("event stream stopped", zap.String("user_id", subject.UserID), zap.Error(err))
		}
	}()
}

// Active reports how many streams are open or reconnecting.
func (h *Hub) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.active)
}

// Close stops every stream and waits for them to exit.
// Holding mu while cancelling keeps Ensure from adding to wg during Wait.
func (h *Hub) Close() {
	h.mu.Lock()
	h.cancel()
	h.mu.Unlock()
	h.wg.Wait()
}
