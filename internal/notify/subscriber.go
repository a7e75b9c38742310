// Package notify listens to the booking service's per-user event stream and
// turns swap notifications into cache staleness signals.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/slotswap-availability/internal/models"
	"github.com/noah-isme/slotswap-availability/pkg/config"
)

// ErrRetriesExhausted is returned once reconnect attempts run out.
var ErrRetriesExhausted = errors.New("event stream retries exhausted")

// Sink receives staleness signals.
type Sink func(models.StaleSignal)

// Subscriber keeps one user's stream open, reconnecting with linear backoff.
type Subscriber struct {
	baseURL    string
	client     *http.Client
	maxRetries int
	retryBase  time.Duration
	sink       Sink
	logger     *zap.Logger
	sleep      func(context.Context, time.Duration) error
}

// NewSubscriber constructs a Subscriber. The HTTP client must not set a total
// timeout since streams stay open indefinitely.
func NewSubscriber(cfg config.NotifyConfig, client *http.Client, sink Sink, logger *zap.Logger) *Subscriber {
	if client == nil {
		client = &http.Client{}
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subscriber{
		baseURL:    strings.TrimRight(cfg.StreamURL, "/"),
		client:     client,
		maxRetries: cfg.MaxRetries,
		retryBase:  cfg.RetryBase,
		sink:       sink,
		logger:     logger,
		sleep:      sleepCtx,
	}
}

// Run streams events for the user until ctx ends or retries are exhausted.
// A successful connect resets the retry counter.
func (s *Subscriber) Run(ctx context.Context, userID, email string) error {
	attempts := 0
	for {
		opened, err := s.stream(ctx, userID, email)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if opened {
			attempts = 0
		}
		if attempts >= s.maxRetries {
			s.logger.Warn("event stream giving up", zap.String("user_id", userID), zap.Int("attempts", attempts), zap.Error(err))
			return ErrRetriesExhausted
		}
		wait := s.retryBase * time.Duration(attempts+1)
		attempts++
		s.logger.Info("event stream reconnecting",
			zap.String("user_id", userID),
			zap.Duration("in", wait),
			zap.Int("attempt", attempts),
			zap.Error(err),
		)
		if err := s.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (s *Subscriber) stream(ctx context.Context, userID, email string) (bool, error) {
	endpoint := s.baseURL + "/" + url.PathEscape(email)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("event stream status %d", resp.StatusCode)
	}

	s.logger.Debug("event stream connected", zap.String("user_id", userID))
	err = readEvents(resp.Body, func(ev Event) {
		if signal, ok := toSignal(ev, userID); ok && s.sink != nil {
			s.sink(signal)
		}
	})
	if err == nil {
		err = errors.New("event stream closed")
	}
	return true, err
}

func toSignal(ev Event, userID string) (models.StaleSignal, bool) {
	signal := models.StaleSignal{UserIDs: []string{userID}, ReceivedAt: time.Now().UTC()}
	switch models.SignalType(ev.Name) {
	case models.SignalSwapRequest:
		signal.Type = models.SignalSwapRequest
	case models.SignalSwapResponse:
		signal.Type = models.SignalSwapResponse
		var payload struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal([]byte(ev.Data), &payload); err == nil {
			signal.Status = string(models.NormalizeSwapStatus(payload.Status))
		}
	default:
		return models.StaleSignal{}, false
	}
	return signal, true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
