package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-prerender/internal/clock"
	"github.com/JakeFAU/jobboard-prerender/internal/clock/system"
	"github.com/JakeFAU/jobboard-prerender/internal/gone"
	"github.com/JakeFAU/jobboard-prerender/internal/metrics"
	"github.com/JakeFAU/jobboard-prerender/internal/prerender"
	"github.com/JakeFAU/jobboard-prerender/internal/render"
	"github.com/JakeFAU/jobboard-prerender/internal/telemetry"
	"github.com/JakeFAU/jobboard-prerender/internal/tracking"
)

const defaultRequestTimeout = 30 * time.Second

// IDGenerator issues request identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Options wires a Server.
//   - Prerender handles crawler requests for job pages and the homepage.
//   - Gone and GoneAllTraffic enable the 410 short-circuit for every visitor.
//   - Pixel is mounted at TrackingPath (default tracking.DefaultPath).
//   - Fallback receives whatever the prerender layer passes through.
type Options struct {
	Prerender      *prerender.Handler
	Renderer       *render.Renderer
	Gone           *gone.Cache
	GoneAllTraffic bool
	Pixel          http.Handler
	TrackingPath   string
	Fallback       http.Handler
	IDs            IDGenerator
	Clock          clock.Clock
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

// Server wires HTTP handlers to the prerender layer.
type Server struct {
	router chi.Router
	opts   Options
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = system.New()
	}
	if opts.Renderer == nil {
		opts.Renderer = render.New(render.Config{})
	}
	if opts.Fallback == nil {
		opts.Fallback = http.NotFoundHandler()
	}
	if opts.TrackingPath == "" {
		opts.TrackingPath = tracking.DefaultPath
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	s := &Server{opts: opts, logger: opts.Logger.Named("http")}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware(opts.IDs))
	r.Use(telemetry.Middleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(opts.RequestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/debug/edge", s.debugEdge)
	if opts.Pixel != nil {
		r.Get(opts.TrackingPath, opts.Pixel.ServeHTTP)
		r.Head(opts.TrackingPath, opts.Pixel.ServeHTTP)
	}

	site := s.siteHandler()
	r.Handle("/", site)
	r.Handle("/*", site)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// siteHandler chains the optional all-traffic gone check, the crawler
// prerender, and the pass-through target.
func (s *Server) siteHandler() http.Handler {
	h := s.opts.Fallback
	if s.opts.Prerender != nil {
		h = s.opts.Prerender.Middleware(h)
	}
	if s.opts.GoneAllTraffic && s.opts.Gone != nil {
		h = gone.Middleware(s.opts.Gone, s.opts.Renderer.Gone, s.logger)(h)
	}
	return h
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.opts.Prerender != nil && !s.opts.Prerender.Configured() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":    "not ready",
			"datastore": "missing",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func requestIDMiddleware(ids IDGenerator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" && ids != nil {
				if id, err := ids.NewID(); err == nil {
					reqID = id
				}
			}
			if reqID == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
			w.Header().Set("X-Request-ID", reqID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestID returns the identifier assigned to the request, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.String("request_id", RequestID(r.Context())),
				zap.String("trace_id", telemetry.TraceID(r.Context())),
				zap.String("user_agent", r.UserAgent()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("panic recovered",
						zap.Any("error", rec), zap.String("path", r.URL.Path))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
