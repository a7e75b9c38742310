package calendarfeed

import (
	"context"
	"crypto/sha256"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/slotswap-availability/internal/models"
)

// Store holds the expanded feed ranges of every subscribed user.
type Store struct {
	fetcher *Fetcher
	feeds   map[string][]string
	loc     *time.Location
	horizon time.Duration
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.RWMutex
	ranges  map[string][]models.BlockedRange
	digests map[string][sha256.Size]byte
}

// NewStore constructs a Store for feeds keyed by user id.
func NewStore(fetcher *Fetcher, feeds map[string][]string, loc *time.Location, horizonDays int, logger *zap.Logger) *Store {
	if loc == nil {
		loc = time.UTC
	}
	if horizonDays <= 0 {
		horizonDays = 60
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		fetcher: fetcher,
		feeds:   feeds,
		loc:     loc,
		horizon: time.Duration(horizonDays) * 24 * time.Hour,
		logger:  logger,
		now:     time.Now,
		ranges:  make(map[string][]models.BlockedRange),
		digests: make(map[string][sha256.Size]byte),
	}
}

// BusyRanges returns the last expanded feed ranges for the subject.
func (s *Store) BusyRanges(_ context.Context, subject models.Subject) ([]models.BlockedRange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cached := s.ranges[subject.UserID]
	out := make([]models.BlockedRange, len(cached))
	copy(out, cached)
	return out, nil
}

// Users lists subscribed user ids in stable order.
func (s *Store) Users() []string {
	users := make([]string, 0, len(s.feeds))
	for user := range s.feeds {
		users = append(users, user)
	}
	sort.Strings(users)
	return users
}

// RefreshAll refreshes every user and returns those whose feed content changed.
func (s *Store) RefreshAll(ctx context.Context) ([]string, error) {
	var (
		changed []string
		errs    []error
	)
	for _, user := range s.Users() {
		ok, err := s.RefreshUser(ctx, user)
		if err != nil {
			errs = append(errs, err)
		}
		if ok {
			changed = append(changed, user)
		}
	}
	return changed, errors.Join(errs...)
}

// RefreshUser fetches, parses and expands the user's feeds. It reports
// whether the combined feed content differs from the previous refresh.
func (s *Store) RefreshUser(ctx context.Context, userID string) (bool, error) {
	urls := s.feeds[userID]
	if len(urls) == 0 {
		return false, nil
	}

	from := startOfDay(s.now().In(s.loc)).AddDate(0, 0, -1)
	to := from.Add(s.horizon)

	hash := sha256.New()
	var (
		all  []models.BlockedRange
		errs []error
	)
	for _, u := range urls {
		res, err := s.fetcher.Fetch(ctx, Source{UserID: userID, URL: u})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		hash.Write(res.Body)
		events, err := Parse(res.Body, s.loc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ranges, err := Expand(events, from, to)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		all = append(all, ranges...)
	}
	if len(errs) == len(urls) {
		// keep serving the previous snapshot
		return false, errors.Join(errs...)
	}

	var digest [sha256.Size]byte
	copy(digest[:], hash.Sum(nil))

	s.mu.Lock()
	prev, seen := s.digests[userID]
	s.digests[userID] = digest
	s.ranges[userID] = all
	s.mu.Unlock()

	changed := !seen || prev != digest
	s.logger.Debug("calendar feeds refreshed",
		zap.String("user_id", userID),
		zap.Int("ranges", len(all)),
		zap.Bool("changed", changed),
	)
	return changed, errors.Join(errs...)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
