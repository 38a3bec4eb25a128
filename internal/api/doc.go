// Package api hosts the HTTP server and middleware in front of the job board.
// Notable routes:
//   - GET /healthz and /readyz for probes; readyz fails without datastore credentials.
//   - GET /metrics for Prometheus scraping.
//   - GET /debug/edge for a JSON view of crawler classification.
//   - GET the tracking path for the bot-visit pixel.
//   - Everything else flows through the gone check, the crawler prerender and
//     finally the SPA pass-through.
package api
