// Package bookingclient reads a user's events, busy times and swaps from the
// booking service's REST API.
package bookingclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/slotswap-availability/internal/models"
	"github.com/noah-isme/slotswap-availability/pkg/config"
	appErrors "github.com/noah-isme/slotswap-availability/pkg/errors"
)

const maxBody = 4 << 20

// Client calls the booking API on behalf of a subject, forwarding their bearer token.
type Client struct {
	baseURL string
	loc     *time.Location
	http    *http.Client
	logger  *zap.Logger
}

// New constructs a Client. A nil httpClient gets one with the configured timeout.
// Times sent without an offset are read in loc.
func New(cfg config.BookingConfig, loc *time.Location, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Client{baseURL: cfg.BaseURL, loc: loc, http: httpClient, logger: logger}
}

// BusyRanges fetches GET /busy-times.
func (c *Client) BusyRanges(ctx context.Context, subject models.Subject) ([]models.BlockedRange, error) {
	var items []busyItem
	if err := c.getList(ctx, subject, "/busy-times", &items); err != nil {
		return nil, err
	}
	out := make([]models.BlockedRange, 0, len(items))
	for _, item := range items {
		r := item.model(c.loc)
		if r.Start.IsZero() || r.End.IsZero() {
			c.logger.Debug("skipping busy time without readable bounds", zap.String("event_id", r.EventID))
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Events fetches GET /getEvent/{userID}.
func (c *Client) Events(ctx context.Context, subject models.Subject) ([]models.Event, error) {
	var items []eventItem
	if err := c.getList(ctx, subject, "/getEvent/"+url.PathEscape(subject.UserID), &items); err != nil {
		return nil, err
	}
	out := make([]models.Event, 0, len(items))
	for _, item := range items {
		out = append(out, item.model(c.loc))
	}
	return out, nil
}

// SwapLocks fetches GET /getSwap/{userID} and folds the swaps into lock sets.
func (c *Client) SwapLocks(ctx context.Context, subject models.Subject) (models.SwapLocks, error) {
	var items []swapItem
	if err := c.getList(ctx, subject, "/getSwap/"+url.PathEscape(subject.UserID), &items); err != nil {
		return models.SwapLocks{}, err
	}
	swaps := make([]models.Swap, 0, len(items))
	for _, item := range items {
		swaps = append(swaps, item.model())
	}
	return models.NewSwapLocks(swaps), nil
}

func (c *Client) getList(ctx context.Context, subject models.Subject, path string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build booking request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if subject.Token != "" {
		req.Header.Set("Authorization", "Bearer "+subject.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, appErrors.ErrUpstream.Message)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "read booking response")
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return appErrors.Clone(appErrors.ErrUnauthorized, "booking service rejected credentials")
	case resp.StatusCode == http.StatusNotFound:
		// unknown users have nothing booked
		return nil
	case resp.StatusCode >= 300:
		c.logger.Warn("booking request failed", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return appErrors.Wrap(fmt.Errorf("%s returned %d", path, resp.StatusCode), appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, appErrors.ErrUpstream.Message)
	}

	if err := decodeList(body, dest); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "decode booking response")
	}
	return nil
}

// Ping checks the booking API is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/busy-times", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("booking api status %d", resp.StatusCode)
	}
	return nil
}
