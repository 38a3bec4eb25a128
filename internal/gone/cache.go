package gone

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-prerender/internal/clock"
	"github.com/JakeFAU/jobboard-prerender/internal/memo"
	"github.com/JakeFAU/jobboard-prerender/internal/metrics"
)

// DefaultTTL is how long a loaded list is trusted before refetching.
const DefaultTTL = 5 * time.Minute

// CacheConfig controls a Cache.
type CacheConfig struct {
	TTL    time.Duration
	Clock  clock.Clock
	Logger *zap.Logger
}

// Cache memoizes the removed-path list. Lookups never fail: a broken source
// yields the previous list, or an empty one, so traffic is never blocked on
// the list being unavailable.
type Cache struct {
	source Source
	memo   *memo.Memo[Set]
	logger *zap.Logger
}

// NewCache wires a Cache around src.
func NewCache(src Source, cfg CacheConfig) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cache{source: src, logger: logger}
	c.memo = memo.New(memo.Config{
		TTL:   cfg.TTL,
		Clock: cfg.Clock,
		OnStale: func(err error, age time.Duration) {
			logger.Warn("gone list reload failed, serving previous list",
				zap.Error(err), zap.Duration("age", age))
		},
	}, c.load)
	return c
}

func (c *Cache) load(ctx context.Context) (Set, error) {
	if c.source == nil {
		return Set{}, nil
	}
	rc, err := c.source.Fetch(ctx)
	if err != nil {
		metrics.ObserveGoneRefresh("error", -1)
		return nil, err
	}
	defer rc.Close() //nolint:errcheck // read-only
	set, err := Parse(rc)
	if err != nil {
		metrics.ObserveGoneRefresh("error", -1)
		return nil, fmt.Errorf("parse %s: %w", c.source, err)
	}
	metrics.ObserveGoneRefresh("ok", len(set))
	c.logger.Info("gone list loaded", zap.String("source", c.source.String()), zap.Int("paths", len(set)))
	return set, nil
}

// Get returns the current list. It never fails.
func (c *Cache) Get(ctx context.Context) Set {
	set, err := c.memo.Get(ctx)
	if err != nil {
		c.logger.Warn("gone list unavailable, treating nothing as gone", zap.Error(err))
		return Set{}
	}
	return set
}

// Contains reports whether path is listed.
func (c *Cache) Contains(ctx context.Context, path string) bool {
	return c.Get(ctx).Contains(path)
}

// Refresh reloads the list ahead of expiry. The error is only non-nil when no
// list has ever loaded.
func (c *Cache) Refresh(ctx context.Context) error {
	if _, err := c.memo.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh gone list: %w", err)
	}
	return nil
}

// Stats reports the cached list size and age without triggering a load.
func (c *Cache) Stats() (size int, age time.Duration, loaded bool) {
	set, ok := c.memo.Peek()
	if !ok {
		return 0, 0, false
	}
	age, _ = c.memo.Age()
	return len(set), age, true
}

// Source returns the configured source, or nil.
func (c *Cache) Source() Source {
	return c.source
}
