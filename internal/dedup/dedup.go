// Package dedup collapses concurrent identical requests and briefly reuses
// their outcome. State is per process.
package dedup

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/jobboard-prerender/internal/clock"
	"github.com/JakeFAU/jobboard-prerender/internal/clock/system"
)

// DefaultWindow is how long a settled result stays reusable.
const DefaultWindow = time.Second

// Config tunes a Group.
type Config[T any] struct {
	// Window is the retention period after completion. Zero means DefaultWindow;
	// negative disables retention so only in-flight calls are shared.
	Window time.Duration
	Clock  clock.Clock
	// Retain decides whether a successful value is kept. Nil keeps everything.
	Retain func(T) bool
}

type entry[T any] struct {
	value   T
	expires time.Time
}

// Group runs fn at most once per key among overlapping callers.
type Group[T any] struct {
	flight singleflight.Group
	window time.Duration
	clock  clock.Clock
	retain func(T) bool

	mu      sync.Mutex
	settled map[string]entry[T]
}

// New builds a Group.
func New[T any](cfg Config[T]) *Group[T] {
	window := cfg.Window
	if window == 0 {
		window = DefaultWindow
	}
	clk := cfg.Clock
	if clk == nil {
		clk = system.New()
	}
	return &Group[T]{
		window:  window,
		clock:   clk,
		retain:  cfg.Retain,
		settled: make(map[string]entry[T]),
	}
}

// Do returns the retained or in-flight value for key, or runs fn. shared is
// true when the caller did not run fn itself.
func (g *Group[T]) Do(key string, fn func() (T, error)) (value T, shared bool, err error) {
	if v, ok := g.lookup(key); ok {
		return v, true, nil
	}
	ran := false
	res, err, _ := g.flight.Do(key, func() (any, error) {
		// A flight may have settled between lookup and Do.
		if v, ok := g.lookup(key); ok {
			return v, nil
		}
		ran = true
		v, err := fn()
		if err == nil {
			g.store(key, v)
		}
		return v, err
	})
	if res != nil {
		value = res.(T) //nolint:forcetypeassert // only T is ever stored
	}
	return value, !ran, err
}

// Len reports retained entries, sweeping expired ones first.
func (g *Group[T]) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sweepLocked(g.clock.Now())
	return len(g.settled)
}

func (g *Group[T]) lookup(key string) (T, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.clock.Now()
	g.sweepLocked(now)
	e, ok := g.settled[key]
	if !ok {
		var zero T
		return zero, false
	}
	return e.value, true
}

func (g *Group[T]) store(key string, v T) {
	if g.window < 0 {
		return
	}
	if g.retain != nil && !g.retain(v) {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.settled[key] = entry[T]{value: v, expires: g.clock.Now().Add(g.window)}
}

func (g *Group[T]) sweepLocked(now time.Time) {
	for k, e := range g.settled {
		if !now.Before(e.expires) {
			delete(g.settled, k)
		}
	}
}
