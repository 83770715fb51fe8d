// Package leaderboard serves the top-offenders ranking through a TTL cache.
// Reads go cache-first; count-changing writes elsewhere in the system evict
// the cached snapshot eagerly, with TTL expiry as the backstop.
package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/fleetwatch/internal/alert"
)

// topDriversKey is the single cache slot the leaderboard occupies.
const topDriversKey = "leaderboard:top_drivers"

// Cache is a byte-oriented TTL cache. A miss is (nil, false, nil), never an
// error; errors are reserved for backend failures.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Ranker computes the authoritative ranking. Satisfied by alert.Store.
type Ranker interface {
	TopDrivers(ctx context.Context, n int) ([]alert.DriverCount, error)
}

// Service is the read-through leaderboard.
type Service struct {
	ranker  Ranker
	cache   Cache
	logger  log.Logger
	metrics *Metrics

	size int
	ttl  time.Duration
}

// NewService creates the leaderboard service with a fixed ranking size and
// cache TTL.
func NewService(ranker Ranker, cache Cache, logger log.Logger, metrics *Metrics, size int, ttl time.Duration) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		ranker:  ranker,
		cache:   cache,
		logger:  logger,
		metrics: metrics,
		size:    size,
		ttl:     ttl,
	}
}

// Top returns the current top drivers by active alert count. A cache hit
// serves the possibly stale snapshot; a miss recomputes from the store and
// repopulates the cache. Cache failures degrade to store reads, never to
// request failures.
func (s *Service) Top(ctx context.Context) ([]alert.DriverCount, error) {
	raw, ok, err := s.cache.Get(ctx, topDriversKey)
	if err != nil {
		s.logger.Warn(ctx, "leaderboard cache read failed, falling back to store", "error", err.Error())
	} else if ok {
		var rows []alert.DriverCount
		if err := json.Unmarshal(raw, &rows); err == nil {
			if s.metrics != nil {
				s.metrics.CacheHits.Inc()
			}
			return rows, nil
		}
		// A corrupt entry behaves like a miss and gets overwritten below.
		s.logger.Warn(ctx, "leaderboard cache entry corrupt, recomputing")
	}
	if s.metrics != nil {
		s.metrics.CacheMisses.Inc()
	}

	rows, err := s.ranker.TopDrivers(ctx, s.size)
	if err != nil {
		return nil, fmt.Errorf("compute top drivers: %w", err)
	}
	if rows == nil {
		rows = []alert.DriverCount{}
	}

	raw, err = json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("marshal leaderboard snapshot: %w", err)
	}
	if err := s.cache.Set(ctx, topDriversKey, raw, s.ttl); err != nil {
		s.logger.Warn(ctx, "leaderboard cache write failed", "error", err.Error())
	}
	return rows, nil
}

// Invalidate implements alert.Invalidator: it evicts the cached snapshot so
// the next read recomputes. Best-effort; the TTL bounds staleness if the
// eviction fails.
func (s *Service) Invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, topDriversKey); err != nil {
		s.logger.Warn(ctx, "leaderboard cache eviction failed", "error", err.Error())
		return
	}
	if s.metrics != nil {
		s.metrics.Invalidations.Inc()
	}
}
