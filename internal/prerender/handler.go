// Package prerender serves static HTML to crawlers for job pages and the
// homepage, and hands every other request to the next handler.
package prerender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-prerender/internal/analytics"
	"github.com/JakeFAU/jobboard-prerender/internal/botdetect"
	"github.com/JakeFAU/jobboard-prerender/internal/cachepolicy"
	"github.com/JakeFAU/jobboard-prerender/internal/clock"
	"github.com/JakeFAU/jobboard-prerender/internal/clock/system"
	"github.com/JakeFAU/jobboard-prerender/internal/dedup"
	"github.com/JakeFAU/jobboard-prerender/internal/gone"
	"github.com/JakeFAU/jobboard-prerender/internal/lookup"
	"github.com/JakeFAU/jobboard-prerender/internal/memo"
	"github.com/JakeFAU/jobboard-prerender/internal/metrics"
	"github.com/JakeFAU/jobboard-prerender/internal/render"
	"github.com/JakeFAU/jobboard-prerender/internal/store"
	"github.com/JakeFAU/jobboard-prerender/internal/tracking"
	"github.com/JakeFAU/jobboard-prerender/internal/vacancy"
)

// ErrNotConfigured is reported when a bot asks for a page and no datastore
// credentials were supplied.
var ErrNotConfigured = errors.New("prerender: datastore not configured")

// Values of the X-Edge-Function response header.
const (
	EdgeJob         = "bot-prerender"
	EdgeGone        = "bot-prerender-410"
	EdgeConfigError = "bot-prerender-config-error"
	EdgeHomepage    = "homepage-bot-prerender"
)

// Page labels used in metrics and analytics.
const (
	PageJob      = "job"
	PageHomepage = "homepage"
)

// Defaults applied by New.
const (
	DefaultHomepageTTL   = 24 * time.Hour
	DefaultHomepageLimit = 50
)

const jobPrefix = "/job/"

// Finder resolves a slug to a job.
type Finder interface {
	Find(ctx context.Context, slug string) (lookup.Result, error)
}

// Tagger derives an entity tag from a serialized job record.
type Tagger interface {
	ETag(data []byte) string
}

// Config wires a Handler.
//   - Configured reports whether datastore credentials exist (nil means yes).
//   - DedupWindow: how long a rendered page is reused (0 = dedup.DefaultWindow).
//   - HomepageTTL/HomepageLimit: homepage job list memo (defaults 24h, 50).
//   - ProviderHeader: hosting CDN cache header name ("" omits it).
type Config struct {
	Renderer       *render.Renderer
	Finder         Finder
	Jobs           store.Jobs
	Gone           *gone.Cache
	Configured     func() bool
	DedupWindow    time.Duration
	HomepageTTL    time.Duration
	HomepageLimit  int
	ProviderHeader string
	Tagger         Tagger
	Emitter        analytics.Emitter
	Clock          clock.Clock
	Logger         *zap.Logger
}

// outcome is an immutable rendered response shared between deduplicated
// callers. Per-request headers are layered on at write time.
type outcome struct {
	status  int
	body    []byte
	header  http.Header
	maxAge  time.Duration
	etag    string
	slug    string
	jobFlow bool
}

// Handler is the crawler-facing entry point.
type Handler struct {
	cfg       Config
	renderer  *render.Renderer
	clock     clock.Clock
	logger    *zap.Logger
	emitter   analytics.Emitter
	pages     *dedup.Group[*outcome]
	homepage  *memo.Memo[[]vacancy.Job]
	goneCache *gone.Cache
}

// New builds a Handler.
func New(cfg Config) *Handler {
	if cfg.Renderer == nil {
		cfg.Renderer = render.New(render.Config{})
	}
	if cfg.Clock == nil {
		cfg.Clock = system.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Emitter == nil {
		cfg.Emitter = analytics.Discard{}
	}
	if cfg.HomepageTTL <= 0 {
		cfg.HomepageTTL = DefaultHomepageTTL
	}
	if cfg.HomepageLimit <= 0 {
		cfg.HomepageLimit = DefaultHomepageLimit
	}
	h := &Handler{
		cfg:       cfg,
		renderer:  cfg.Renderer,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		emitter:   cfg.Emitter,
		goneCache: cfg.Gone,
	}
	h.pages = dedup.New(dedup.Config[*outcome]{
		Window: cfg.DedupWindow,
		Clock:  cfg.Clock,
		Retain: func(o *outcome) bool { return o.status == http.StatusOK },
	})
	h.homepage = memo.New(memo.Config{
		TTL:   cfg.HomepageTTL,
		Clock: cfg.Clock,
		OnStale: func(err error, age time.Duration) {
			h.logger.Warn("homepage reload failed, serving previous list",
				zap.Error(err), zap.Duration("age", age))
		},
	}, h.loadHomepage)
	return h
}

// Configured reports whether datastore credentials are present.
func (h *Handler) Configured() bool {
	return h.cfg.Configured == nil || h.cfg.Configured()
}

// RefreshHomepage reloads the homepage job list ahead of expiry.
func (h *Handler) RefreshHomepage(ctx context.Context) error {
	if !h.Configured() || h.cfg.Jobs == nil {
		return ErrNotConfigured
	}
	if _, err := h.homepage.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh homepage: %w", err)
	}
	return nil
}

// Match classifies path. ok is false for paths this layer never handles.
func Match(path string) (page, slug string, ok bool) {
	if path == "/" {
		return PageHomepage, "", true
	}
	rest, found := strings.CutPrefix(path, jobPrefix)
	if !found {
		return "", "", false
	}
	rest = strings.TrimSuffix(rest, "/")
	if rest == "" || strings.Contains(rest, "/") {
		return "", "", false
	}
	return PageJob, rest, true
}

// Middleware prerenders for crawlers and delegates everything else to next.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		page, slug, ok := Match(r.URL.Path)
		ua := r.UserAgent()
		if !ok || !botdetect.IsBot(ua) {
			next.ServeHTTP(w, r)
			return
		}
		h.logger.Debug("prerendering for crawler",
			zap.String("path", r.URL.Path), zap.String("bot_type", botdetect.Type(ua)))

		var out *outcome
		if page == PageHomepage {
			out = h.homepageOutcome(r.Context())
		} else {
			out = h.jobOutcome(r.Context(), r.URL.Path, slug)
		}
		status := h.write(w, r, out)
		h.observe(r, page, slug, status)
	})
}

func (h *Handler) jobOutcome(ctx context.Context, path, slug string) *outcome {
	if !h.Configured() {
		h.logger.Error("datastore credentials missing", zap.Error(ErrNotConfigured))
		return h.configError()
	}
	if out := h.goneOutcome(ctx, path); out != nil {
		return out
	}
	// The first caller's cancellation must not fail everyone sharing the render.
	// Keyed on the slug so /job/x and /job/x/ share one lookup.
	renderCtx := context.WithoutCancel(ctx)
	out, shared, err := h.pages.Do(slug, func() (*outcome, error) {
		return h.renderJob(renderCtx, slug), nil
	})
	if err != nil {
		return h.failure("Internal server error", err)
	}
	if shared {
		metrics.ObserveDedupShared()
		h.logger.Debug("deduplicated concurrent request", zap.String("slug", slug))
	}
	return out
}

// goneOutcome returns the 410 page when path is on the gone list, or nil.
func (h *Handler) goneOutcome(ctx context.Context, path string) *outcome {
	if h.goneCache == nil || !h.goneCache.Contains(ctx, path) {
		return nil
	}
	h.logger.Info("serving 410 for listed job", zap.String("path", path))
	body, err := h.renderer.Gone(path)
	if err != nil {
		return h.failure("Internal server error", err)
	}
	hdr := http.Header{}
	hdr.Set("X-Edge-Function", EdgeGone)
	hdr.Set("X-410-Source", "cache")
	cachepolicy.Apply(hdr, cachepolicy.Gone())
	return &outcome{status: http.StatusGone, body: body, header: hdr}
}

func (h *Handler) renderJob(ctx context.Context, slug string) *outcome {
	if h.cfg.Finder == nil {
		return h.configError()
	}
	res, err := h.cfg.Finder.Find(ctx, slug)
	switch {
	case errors.Is(err, lookup.ErrNotFound):
		h.logger.Info("job not found", zap.String("slug", slug))
		return h.notFound(slug)
	case errors.Is(err, store.ErrNotConfigured):
		return h.configError()
	case err != nil:
		return h.failure("Database error", err)
	}

	now := h.clock.Now()
	body, err := h.renderer.Job(res.Job, slug, now)
	if err != nil {
		return h.failure("Internal server error", err)
	}
	maxAge := cachepolicy.JobMaxAge(res.Job, now)
	hdr := http.Header{}
	hdr.Set("X-Edge-Function", EdgeJob)
	hdr.Set("X-Job-Expires", res.Job.ExpiresAt.String())
	hdr.Set("X-Cache-Duration", strconv.FormatInt(int64(maxAge/time.Second), 10))
	hdr.Set("X-Query-Method", queryMethod(res.Job, slug))
	hdr.Set("X-Lookup-Strategy", res.Strategy)
	h.logger.Debug("rendered job page",
		zap.String("slug", slug), zap.String("strategy", res.Strategy), zap.Duration("max_age", maxAge))
	return &outcome{
		status:  http.StatusOK,
		body:    body,
		header:  hdr,
		maxAge:  maxAge,
		etag:    h.etag(res.Job),
		slug:    slug,
		jobFlow: true,
	}
}

func queryMethod(job vacancy.Job, slug string) string {
	if job.Slug == slug {
		return "optimized"
	}
	return "fallback"
}

func (h *Handler) etag(job vacancy.Job) string {
	if h.cfg.Tagger == nil {
		return ""
	}
	data, err := json.Marshal(job)
	if err != nil {
		h.logger.Debug("etag marshal failed", zap.Error(err))
		return ""
	}
	return h.cfg.Tagger.ETag(data)
}

func (h *Handler) notFound(slug string) *outcome {
	body, err := h.renderer.Error(http.StatusNotFound,
		fmt.Sprintf("Job not found: %s. Consider adding to 410 list.", slug))
	if err != nil {
		return h.failure("Internal server error", err)
	}
	hdr := http.Header{}
	hdr.Set("X-Missing-Slug", slug)
	cachepolicy.Apply(hdr, cachepolicy.NotFound())
	return &outcome{status: http.StatusNotFound, body: body, header: hdr}
}

func (h *Handler) configError() *outcome {
	body, _ := h.renderer.Error(http.StatusInternalServerError, "Configuration error")
	hdr := http.Header{}
	hdr.Set("X-Edge-Function", EdgeConfigError)
	cachepolicy.Apply(hdr, cachepolicy.Failure())
	return &outcome{status: http.StatusInternalServerError, body: body, header: hdr}
}

func (h *Handler) failure(message string, err error) *outcome {
	h.logger.Error("prerender failed", zap.String("message", message), zap.Error(err))
	body, rerr := h.renderer.Error(http.StatusInternalServerError, message)
	if rerr != nil {
		body = []byte(message)
	}
	hdr := http.Header{}
	cachepolicy.Apply(hdr, cachepolicy.Failure())
	return &outcome{status: http.StatusInternalServerError, body: body, header: hdr}
}

// write sends out, adding the per-request cache policy for job pages, and
// returns the status actually written.
func (h *Handler) write(w http.ResponseWriter, r *http.Request, out *outcome) int {
	dst := w.Header()
	cachepolicy.Apply(dst, out.header)
	dst.Set("Content-Type", "text/html; charset=utf-8")
	// Every outcome here is crawler-only HTML, errors included.
	dst.Set("Vary", "User-Agent")
	if out.jobFlow && out.status == http.StatusOK {
		cachepolicy.Apply(dst, cachepolicy.ForJob(r.UserAgent(), out.maxAge, h.cfg.ProviderHeader))
		if out.etag != "" {
			dst.Set("ETag", out.etag)
			if etagMatches(r.Header.Get("If-None-Match"), out.etag) {
				dst.Del("Content-Type")
				w.WriteHeader(http.StatusNotModified)
				return http.StatusNotModified
			}
		}
	}
	dst.Set("Content-Length", strconv.Itoa(len(out.body)))
	w.WriteHeader(out.status)
	if r.Method != http.MethodHead {
		if _, err := w.Write(out.body); err != nil {
			h.logger.Debug("write response failed", zap.Error(err))
		}
	}
	return out.status
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for candidate := range strings.SplitSeq(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}

func (h *Handler) observe(r *http.Request, page, slug string, status int) {
	ua := r.UserAgent()
	metrics.ObservePrerender(page, status, botdetect.Class(ua))
	evt := analytics.Event{
		Source:      analytics.SourcePrerender,
		JobSlug:     slug,
		Status:      status,
		BotType:     botdetect.Type(ua),
		UserAgent:   ua,
		IPAddress:   tracking.ClientIP(r),
		Prerendered: status == http.StatusOK || status == http.StatusNotModified,
		Referrer:    r.Referer(),
	}
	if page == PageHomepage {
		evt.Page = PageHomepage
	}
	h.emitter.Emit(evt)
}
