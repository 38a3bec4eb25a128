// Package analytics provides the bot-visit event, the non-blocking hub and
// the emitter interface used by request handlers. Events are batched on a
// background goroutine and fanned out to pluggable sinks such as the
// bot_visits table, Pub/Sub or a Redis stream. Nothing here can fail or slow
// down an HTTP response.
package analytics
