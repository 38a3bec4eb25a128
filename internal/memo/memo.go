// Package memo provides a single-value TTL cache whose loads are collapsed
// across callers and which keeps serving the last good value when a reload
// fails.
package memo

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/jobboard-prerender/internal/clock"
	"github.com/JakeFAU/jobboard-prerender/internal/clock/system"
)

// Loader produces a fresh value.
type Loader[T any] func(ctx context.Context) (T, error)

// Config controls a Memo.
//   - TTL: how long a loaded value is served without reloading.
//   - Clock: time source (defaults to the system clock).
//   - OnStale: optional hook invoked when a failed reload falls back to the
//     previous value.
type Config struct {
	TTL     time.Duration
	Clock   clock.Clock
	OnStale func(err error, age time.Duration)
}

// Memo caches the result of a Loader. It is safe for concurrent use.
type Memo[T any] struct {
	cfg   Config
	load  Loader[T]
	group singleflight.Group

	mu       sync.RWMutex
	value    T
	loadedAt time.Time
	loaded   bool
}

const flightKey = "load"

// New constructs a Memo around load.
func New[T any](cfg Config, load Loader[T]) *Memo[T] {
	if cfg.Clock == nil {
		cfg.Clock = system.New()
	}
	return &Memo[T]{cfg: cfg, load: load}
}

// Get returns the cached value while it is fresh, otherwise reloads. A failed
// reload returns the previous value when there is one; the error is only
// surfaced when nothing has ever loaded.
func (m *Memo[T]) Get(ctx context.Context) (T, error) {
	m.mu.RLock()
	if m.loaded && m.cfg.Clock.Now().Sub(m.loadedAt) < m.cfg.TTL {
		v := m.value
		m.mu.RUnlock()
		return v, nil
	}
	m.mu.RUnlock()
	return m.Refresh(ctx)
}

// Refresh forces a reload regardless of freshness, with the same stale
// fallback as Get.
func (m *Memo[T]) Refresh(ctx context.Context) (T, error) {
	res, err, _ := m.group.Do(flightKey, func() (any, error) {
		loadCtx, cancel := detach(ctx)
		defer cancel()
		v, err := m.load(loadCtx)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.value = v
		m.loadedAt = m.cfg.Clock.Now()
		m.loaded = true
		m.mu.Unlock()
		return v, nil
	})
	if err == nil {
		v, ok := res.(T)
		if !ok {
			var zero T
			return zero, errors.New("memo: unexpected value type")
		}
		return v, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.loaded {
		var zero T
		return zero, err
	}
	if m.cfg.OnStale != nil {
		m.cfg.OnStale(err, m.cfg.Clock.Now().Sub(m.loadedAt))
	}
	return m.value, nil
}

// detach drops ctx's cancellation so a disconnect does not fail the others
// waiting on the load, but keeps its deadline so the load stays bounded.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	out := context.WithoutCancel(ctx)
	if dl, ok := ctx.Deadline(); ok {
		return context.WithDeadline(out, dl)
	}
	return out, func() {}
}

// Age reports how long ago the current value was loaded.
func (m *Memo[T]) Age() (time.Duration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.loaded {
		return 0, false
	}
	return m.cfg.Clock.Now().Sub(m.loadedAt), true
}

// Peek returns the cached value without loading.
func (m *Memo[T]) Peek() (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.value, m.loaded
}
