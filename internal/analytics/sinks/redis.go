package sinks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/JakeFAU/jobboard-prerender/internal/analytics"
)

// DefaultStream is the Redis stream visits are appended to.
const DefaultStream = "bot-visits"

// RedisSink appends each visit to a Redis stream with XADD.
type RedisSink struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

// NewRedisSink builds a RedisSink. maxLen > 0 caps the stream approximately.
func NewRedisSink(client redis.Cmdable, stream string, maxLen int64) *RedisSink {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisSink{client: client, stream: stream, maxLen: maxLen}
}

// Consume pipelines one XADD per event.
func (s *RedisSink) Consume(ctx context.Context, batch []analytics.Event) error {
	if s == nil || s.client == nil {
		return errors.New("redis client is not configured")
	}
	if len(batch) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, evt := range batch {
		payload, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		args := &redis.XAddArgs{
			Stream: s.stream,
			Values: map[string]any{
				"event":    string(payload),
				"source":   string(evt.Source),
				"bot_type": evt.BotType,
			},
		}
		if s.maxLen > 0 {
			args.MaxLen = s.maxLen
			args.Approx = true
		}
		pipe.XAdd(ctx, args)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append to stream %s: %w", s.stream, err)
	}
	return nil
}

// Close implements the Sink interface; the client's owner closes it.
func (s *RedisSink) Close(context.Context) error {
	return nil
}
