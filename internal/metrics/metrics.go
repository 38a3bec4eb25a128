// Package metrics exposes Prometheus collectors for the prerender service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	prerenderResponsesTotal    *prometheus.CounterVec
	prerenderLookupTotal       *prometheus.CounterVec
	prerenderDedupSharedTotal  prometheus.Counter
	goneListRefreshTotal       *prometheus.CounterVec
	goneListSize               prometheus.Gauge
	analyticsDroppedTotal      prometheus.Counter
	trackingPixelTotal         *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		prerenderResponsesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prerender_responses_total",
				Help: "Pre-rendered responses served to crawlers, labeled by page, status and bot class.",
			},
			[]string{"page", "status", "bot_class"},
		)

		prerenderLookupTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prerender_lookup_total",
				Help: "Job lookups by strategy and result (hit, miss, error).",
			},
			[]string{"strategy", "result"},
		)

		prerenderDedupSharedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "prerender_dedup_shared_total",
				Help: "Crawler requests answered from an in-flight or just-completed render of the same path.",
			},
		)

		goneListRefreshTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gone_list_refresh_total",
				Help: "Loads of the removed-path list, labeled by result.",
			},
			[]string{"result"},
		)

		goneListSize = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "gone_list_size",
				Help: "Number of paths in the most recently loaded removed-path list.",
			},
		)

		analyticsDroppedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "analytics_events_dropped_total",
				Help: "Bot visit events dropped because the analytics buffer was full.",
			},
		)

		trackingPixelTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracking_pixel_total",
				Help: "Tracking pixel hits, labeled by whether the visit was recorded or rate limited.",
			},
			[]string{"result"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObservePrerender counts a crawler-facing response.
func ObservePrerender(page string, status int, botClass string) {
	Init()
	prerenderResponsesTotal.WithLabelValues(page, strconv.Itoa(status), botClass).Inc()
}

// ObserveLookup counts one strategy attempt.
func ObserveLookup(strategy, result string) {
	Init()
	prerenderLookupTotal.WithLabelValues(strategy, result).Inc()
}

// ObserveDedupShared counts a response served from a shared render.
func ObserveDedupShared() {
	Init()
	prerenderDedupSharedTotal.Inc()
}

// ObserveGoneRefresh counts a list load; size is ignored when negative.
func ObserveGoneRefresh(result string, size int) {
	Init()
	goneListRefreshTotal.WithLabelValues(result).Inc()
	if size >= 0 {
		goneListSize.Set(float64(size))
	}
}

// ObserveAnalyticsDropped adds n dropped events.
func ObserveAnalyticsDropped(n int) {
	Init()
	analyticsDroppedTotal.Add(float64(n))
}

// ObservePixel counts a tracking pixel hit.
func ObservePixel(result string) {
	Init()
	trackingPixelTotal.WithLabelValues(result).Inc()
}
