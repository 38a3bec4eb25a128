package sinks

import (
	"context"
	"fmt"
	"slices"

	"github.com/JakeFAU/jobboard-prerender/internal/analytics"
	"github.com/JakeFAU/jobboard-prerender/internal/store"
)

// VisitSink writes events to the bot_visits table through a store.VisitWriter,
// either the Postgres pool or the REST endpoint.
type VisitSink struct {
	writer  store.VisitWriter
	sources []analytics.Source
}

// NewVisitSink constructs a VisitSink. When sources is empty every event is
// written; otherwise only events from the listed sources are.
func NewVisitSink(writer store.VisitWriter, sources ...analytics.Source) *VisitSink {
	return &VisitSink{writer: writer, sources: sources}
}

// Consume converts the batch to rows and inserts them in one call.
func (s *VisitSink) Consume(ctx context.Context, batch []analytics.Event) error {
	if s == nil || s.writer == nil {
		return nil
	}
	rows := make([]store.Visit, 0, len(batch))
	for _, evt := range batch {
		if len(s.sources) > 0 && !slices.Contains(s.sources, evt.Source) {
			continue
		}
		rows = append(rows, evt.Visit())
	}
	if len(rows) == 0 {
		return nil
	}
	if err := s.writer.InsertVisits(ctx, rows); err != nil {
		return fmt.Errorf("insert visits: %w", err)
	}
	return nil
}

// Close implements the Sink interface; the writer's owner closes it.
func (s *VisitSink) Close(context.Context) error {
	return nil
}
