// Package tracking serves the 1x1 pixel embedded in prerendered pages and
// records each hit as a bot visit.
package tracking

import (
	"encoding/base64"
	"net"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-prerender/internal/analytics"
	"github.com/JakeFAU/jobboard-prerender/internal/botdetect"
	"github.com/JakeFAU/jobboard-prerender/internal/metrics"
)

// DefaultPath is where the pixel is mounted.
const DefaultPath = "/track/bot-visit"

var transparentGIF = mustDecode("R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7")

func mustDecode(s string) []byte {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// Limiter decides whether a client may record another visit.
type Limiter interface {
	Allow(key string) bool
}

// Handler answers pixel requests. It always serves the image, whatever
// happens to the recording.
type Handler struct {
	emitter analytics.Emitter
	limiter Limiter
	logger  *zap.Logger
}

// NewHandler builds a Handler. limiter may be nil for no limiting.
func NewHandler(emitter analytics.Emitter, limiter Limiter, logger *zap.Logger) *Handler {
	if emitter == nil {
		emitter = analytics.Discard{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{emitter: emitter, limiter: limiter, logger: logger}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.record(r)
	header := w.Header()
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Content-Type", "image/gif")
	header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	header.Set("Content-Length", strconv.Itoa(len(transparentGIF)))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(transparentGIF)
}

func (h *Handler) record(r *http.Request) {
	ip := ClientIP(r)
	if h.limiter != nil && !h.limiter.Allow(ip) {
		metrics.ObservePixel("limited")
		return
	}
	q := r.URL.Query()
	ua := r.UserAgent()
	evt := analytics.Event{
		Source:      analytics.SourcePixel,
		JobSlug:     q.Get("job"),
		Page:        q.Get("page"),
		BotType:     botdetect.Type(ua),
		UserAgent:   ua,
		IPAddress:   ip,
		Prerendered: q.Get("prerendered") == "true",
		Referrer:    r.Referer(),
	}
	h.emitter.Emit(evt)
	metrics.ObservePixel("recorded")
	h.logger.Debug("bot visit tracked",
		zap.String("bot_type", evt.BotType),
		zap.String("job_slug", evt.JobSlug),
		zap.String("page", evt.Page))
}

// ClientIP returns the first X-Forwarded-For hop, else Client-IP, else the
// connection's remote host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("Client-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
