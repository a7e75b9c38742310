// Package calendarfeed turns subscribed ICS calendars into blocked ranges.
package calendarfeed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/slotswap-availability/pkg/storage"
)

const (
	maxFeedBody = 8 << 20
	// feeds whose disk copy was not rewritten for this long are dropped from disk
	staleFeedAge = 30 * 24 * time.Hour
)

// Source is one ICS subscription belonging to a user.
type Source struct {
	UserID string
	URL    string
}

// FetchResult is the body of a feed and whether it changed since the last fetch.
type FetchResult struct {
	Source    Source
	Body      []byte
	FromCache bool
}

type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type cached struct {
	meta cacheMeta
	body []byte
}

// Fetcher downloads feeds with ETag and Last-Modified revalidation. Bodies are
// kept in memory and, when a cache directory is set, mirrored to disk so a
// restart can still revalidate.
type Fetcher struct {
	client *http.Client
	disk   *storage.LocalStorage
	logger *zap.Logger

	mu    sync.Mutex
	cache map[string]cached
}

// NewFetcher constructs a Fetcher. An empty cacheDir keeps the cache in memory only.
func NewFetcher(client *http.Client, cacheDir string, logger *zap.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Fetcher{client: client, logger: logger, cache: make(map[string]cached)}
	if cacheDir != "" {
		disk, err := storage.NewLocalStorage(cacheDir)
		if err != nil {
			logger.Warn("feed disk cache disabled", zap.String("dir", cacheDir), zap.Error(err))
		} else {
			f.disk = disk
		}
	}
	return f
}

// Fetch retrieves one feed. On network or server errors a previously cached
// body is served instead.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, errors.New("feed url is empty")
	}
	prev, hasPrev := f.lookup(src.URL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "text/calendar")
	if hasPrev {
		if prev.meta.ETag != "" {
			req.Header.Set("If-None-Match", prev.meta.ETag)
		}
		if prev.meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", prev.meta.LastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if hasPrev {
			f.logger.Warn("feed fetch failed, serving cached body", zap.String("feed", RedactURL(src.URL)), zap.Error(err))
			return FetchResult{Source: src, Body: prev.body, FromCache: true}, nil
		}
		return FetchResult{}, fmt.Errorf("fetch feed %s: %w", RedactURL(src.URL), err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBody))
		if err != nil {
			return FetchResult{}, fmt.Errorf("read feed %s: %w", RedactURL(src.URL), err)
		}
		entry := cached{
			meta: cacheMeta{
				URL:          src.URL,
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
				UpdatedAt:    time.Now().UTC(),
			},
			body: body,
		}
		f.store(entry)
		return FetchResult{Source: src, Body: body}, nil
	case http.StatusNotModified:
		if !hasPrev {
			return FetchResult{}, fmt.Errorf("feed %s answered 304 without a cached body", RedactURL(src.URL))
		}
		return FetchResult{Source: src, Body: prev.body, FromCache: true}, nil
	default:
		if hasPrev {
			f.logger.Warn("feed returned error status, serving cached body", zap.String("feed", RedactURL(src.URL)), zap.Int("status", resp.StatusCode))
			return FetchResult{Source: src, Body: prev.body, FromCache: true}, nil
		}
		return FetchResult{}, fmt.Errorf("feed %s returned %s", RedactURL(src.URL), resp.Status)
	}
}

func (f *Fetcher) lookup(rawURL string) (cached, bool) {
	f.mu.Lock()
	entry, ok := f.cache[rawURL]
	f.mu.Unlock()
	if ok {
		return entry, true
	}
	entry, err := f.loadDisk(rawURL)
	if err != nil {
		return cached{}, false
	}
	f.mu.Lock()
	f.cache[rawURL] = entry
	f.mu.Unlock()
	return entry, true
}

func (f *Fetcher) store(entry cached) {
	f.mu.Lock()
	f.cache[entry.meta.URL] = entry
	f.mu.Unlock()
	if err := f.saveDisk(entry); err != nil {
		f.logger.Warn("feed cache save failed", zap.String("feed", RedactURL(entry.meta.URL)), zap.Error(err))
	}
}

// Prune drops disk copies not rewritten within staleFeedAge.
func (f *Fetcher) Prune() {
	if f == nil || f.disk == nil {
		return
	}
	removed, err := f.disk.CleanupOlderThan(staleFeedAge)
	if err != nil {
		f.logger.Warn("feed cache prune failed", zap.Error(err))
		return
	}
	if len(removed) > 0 {
		f.logger.Info("feed cache pruned", zap.Int("files", len(removed)))
	}
}

func cacheKey(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:8])
}

func (f *Fetcher) loadDisk(rawURL string) (cached, error) {
	if f.disk == nil {
		return cached{}, errors.New("no disk cache")
	}
	key := cacheKey(rawURL)
	raw, err := f.disk.Read(path.Join(key, "meta.json"))
	if err != nil {
		return cached{}, err
	}
	var meta cacheMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return cached{}, err
	}
	if meta.URL != rawURL {
		return cached{}, fmt.Errorf("feed cache key collision for %s", RedactURL(rawURL))
	}
	body, err := f.disk.Read(path.Join(key, "body.ics"))
	if err != nil {
		return cached{}, err
	}
	return cached{meta: meta, body: body}, nil
}

func (f *Fetcher) saveDisk(entry cached) error {
	if f.disk == nil {
		return nil
	}
	key := cacheKey(entry.meta.URL)
	// body first so meta never points at a missing body
	if err := f.disk.Save(path.Join(key, "body.ics"), entry.body); err != nil {
		return err
	}
	data, err := json.MarshalIndent(entry.meta, "", "  ")
	if err != nil {
		return err
	}
	return f.disk.Save(path.Join(key, "meta.json"), data)
}

// RedactURL keeps only scheme and host so private feed tokens never reach logs.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/(redacted)"
}
