package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-prerender/internal/analytics"
)

// LogSink emits one structured log line per visit.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []analytics.Event) error {
	for _, evt := range batch {
		s.logger.Info("bot visit",
			zap.Stringer("id", evt.ID),
			zap.String("source", string(evt.Source)),
			zap.String("job_slug", evt.JobSlug),
			zap.String("page", evt.Page),
			zap.Int("status", evt.Status),
			zap.String("bot_type", evt.BotType),
			zap.String("user_agent", evt.UserAgent),
			zap.Bool("prerendered", evt.Prerendered),
			zap.Time("visited_at", evt.VisitedAt),
		)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
