// Package main hosts the edge service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, readiness, metrics, the edge debug endpoint and the
//     tracking pixel. Every other path goes through the site chain below.
//   - Site chain: an optional all-traffic 410 check (internal/gone), then the bot prerender middleware
//     (internal/prerender), then the single-page app fallback (internal/spa, reverse proxy or static dir).
//   - Prerender: crawlers are classified by User-Agent (internal/botdetect). Job pages are resolved via the
//     slug lookup chain (internal/lookup), rendered to HTML with JSON-LD (internal/render) and coalesced per
//     path for a short window (internal/dedup). Cache headers come from internal/cachepolicy.
//   - Datastore: the REST table client, Postgres (pgx) or an in-memory store seeded from JSON.
//   - Analytics: prerender outcomes and pixel hits are batched by internal/analytics.Hub and fanned out to the
//     configured sinks (log, datastore, Pub/Sub, Redis stream).
//   - Background refresh: robfig/cron reloads the 410 list and the homepage job list on a schedule.
//
// Quick checklist:
//   - Configure env vars: PRERENDER_SERVER_PORT, PRERENDER_DATASTORE_BACKEND, VITE_SUPABASE_URL and
//     VITE_SUPABASE_KEY for the REST backend, URL for the public site base, PRERENDER_SPA_ORIGIN or
//     PRERENDER_SPA_DIR for pass-through traffic.
//   - Run locally: go run ./cmd/prerender-edge -config config.yaml (or rely solely on env overrides).
//   - Cloud Run: the container listens on the configured port, stays stateless across requests and drains on
//     SIGTERM.
package main
