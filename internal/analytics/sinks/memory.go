package sinks

import (
	"context"
	"sync"

	"github.com/JakeFAU/jobboard-prerender/internal/analytics"
)

// MemorySink records events for inspection.
type MemorySink struct {
	mu     sync.RWMutex
	events []analytics.Event
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Consume appends the batch.
func (s *MemorySink) Consume(_ context.Context, batch []analytics.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, batch...)
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *MemorySink) Close(context.Context) error {
	return nil
}

// Events returns a copy of everything consumed so far.
func (s *MemorySink) Events() []analytics.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]analytics.Event, len(s.events))
	copy(out, s.events)
	return out
}
