// Package sinks implements concrete visit consumers: structured logging, the
// bot_visits table, Pub/Sub, a Redis stream and an in-memory recorder. Each
// sink satisfies analytics.Sink and is safe for repeated Consume/Close cycles.
package sinks
