package notify

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/slotswap-availability/internal/models"
)

type blockingRunner struct {
	runs int32
}

func (b *blockingRunner) Run(ctx context.Context, _, _ string) error {
	atomic.AddInt32(&b.runs, 1)
	<-ctx.Done()
	return ctx.Err()
}

type quickRunner struct{}

func (quickRunner) Run(context.Context, string, string) error { return ErrRetriesExhausted }

func TestHubEnsureIsIdempotent(t *testing.T) {
	runner := &blockingRunner{}
	hub := NewHub(context.Background(), runner, nil)

	hub.Ensure(models.Subject{UserID: "u1", Email: "u1@example.com"})
	hub.Ensure(models.Subject{UserID: "u1", Email: "u1@example.com"})
	hub.Ensure(models.Subject{UserID: "u2", Email: "u2@example.com"})
	hub.Ensure(models.Subject{UserID: "u3"})

	assert.Equal(t, 2, hub.Active())
	hub.Close()
	assert.Equal(t, 0, hub.Active())
	assert.Equal(t, int32(2), atomic.LoadInt32(&runner.runs))

	hub.Ensure(models.Subject{UserID: "u4", Email: "u4@example.com"})
	assert.Equal(t, 0, hub.Active())
}

func TestHubForgetsFinishedStreams(t *testing.T) {
	hub := NewHub(context.Background(), quickRunner{}, nil)
	hub.Ensure(models.Subject{UserID: "u1", Email: "u1@example.com"})

	assert.Eventually(t, func() bool { return hub.Active() == 0 }, time.Second, 5*time.Millisecond)
	hub.Close()
}

func TestHubCloseRacingEnsure(t *testing.T) {
	runner := &blockingRunner{}
	hub := NewHub(context.Background(), runner, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("u%d", i)
			hub.Ensure(models.Subject{UserID: id, Email: id + "@example.com"})
		}(i)
	}
	hub.Close()
	wg.Wait()

	hub.Ensure(models.Subject{UserID: "late", Email: "late@example.com"})
	assert.Eventually(t, func() bool { return hub.Active() == 0 }, time.Second, 5*time.Millisecond)
}
