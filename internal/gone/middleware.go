package gone

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-prerender/internal/cachepolicy"
)

// EdgeFunction names this layer in the X-Edge-Function response header.
const EdgeFunction = "handle-410-urls"

// PageFunc renders the body served for a removed path.
type PageFunc func(path string) ([]byte, error)

// Middleware answers 410 for every listed path regardless of who is asking,
// and passes everything else to next.
func Middleware(c *Cache, page PageFunc, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c == nil || !c.Contains(r.Context(), r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			logger.Debug("serving 410 for listed path", zap.String("path", r.URL.Path))
			WriteGone(w, r.URL.Path, page, logger)
		})
	}
}

// WriteGone writes a 410 response under the shared gone cache policy.
func WriteGone(w http.ResponseWriter, path string, page PageFunc, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var body []byte
	if page != nil {
		var err error
		if body, err = page(path); err != nil {
			logger.Warn("render gone page failed", zap.String("path", path), zap.Error(err))
			body = []byte("Gone")
		}
	}
	h := w.Header()
	cachepolicy.Apply(h, cachepolicy.Gone())
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("X-Edge-Function", EdgeFunction)
	h.Set("X-410-Source", "list")
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusGone)
	_, _ = w.Write(body)
}
