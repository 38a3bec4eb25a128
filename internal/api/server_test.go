package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobboard-prerender/internal/clock/manual"
	"github.com/JakeFAU/jobboard-prerender/internal/gone"
	"github.com/JakeFAU/jobboard-prerender/internal/lookup"
	"github.com/JakeFAU/jobboard-prerender/internal/prerender"
	"github.com/JakeFAU/jobboard-prerender/internal/render"
	"github.com/JakeFAU/jobboard-prerender/internal/storage/memory"
	"github.com/JakeFAU/jobboard-prerender/internal/tracking"
	"github.com/JakeFAU/jobboard-prerender/internal/vacancy"
)

const (
	googlebot = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
	browser   = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 Chrome/126.0 Safari/537.36"
)

var testNow = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	server *Server
	gone   *gone.Cache
}

func newTestServer(t *testing.T, mutate ...func(*Options)) *testEnv {
	t.Helper()
	clk := manual.New(testNow)
	jobs := memory.NewJobStore(vacancy.Job{
		ID: "1", Title: "SEO Manager", CompanyName: "Acme", City: "Berlin",
		Slug:      "seo-manager-acme-berlin",
		CreatedAt: vacancy.At(testNow.Add(-time.Hour)),
		ExpiresAt: vacancy.At(testNow.Add(20 * 24 * time.Hour)),
	})
	listPath := filepath.Join(t.TempDir(), "410-urls.txt")
	require.NoError(t, os.WriteFile(listPath, []byte("/job/closed-role\n"), 0o600))
	cache := gone.NewCache(gone.NewFileSource(listPath), gone.CacheConfig{Clock: clk})
	renderer := render.New(render.Config{BaseURL: "https://seojobs.example"})

	opts := Options{
		Prerender: prerender.New(prerender.Config{
			Renderer: renderer,
			Finder:   lookup.Default(jobs, nil),
			Jobs:     jobs,
			Gone:     cache,
			Clock:    clk,
		}),
		Renderer: renderer,
		Gone:     cache,
		Pixel:    tracking.NewHandler(nil, nil, nil),
		Fallback: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("spa shell"))
		}),
		IDs:   &fakeIDGen{ids: []string{"req-1"}},
		Clock: clk,
	}
	for _, m := range mutate {
		m(&opts)
	}
	return &testEnv{server: NewServer(opts), gone: cache}
}

func (e *testEnv) do(method, target, ua string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("User-Agent", ua)
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthzAndRequestID(t *testing.T) {
	t.Parallel()

	env := newTestServer(t)
	rec := env.do(http.MethodGet, "/healthz", browser)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
}

func TestRequestIDIsPropagated(t *testing.T) {
	t.Parallel()

	env := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "upstream-id")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, "upstream-id", rec.Header().Get("X-Request-ID"))
}

func TestReadyzReflectsDatastoreConfig(t *testing.T) {
	t.Parallel()

	env := newTestServer(t)
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/readyz", browser).Code)

	env = newTestServer(t, func(o *Options) {
		o.Prerender = prerender.New(prerender.Config{Configured: func() bool { return false }})
	})
	rec := env.do(http.MethodGet, "/readyz", browser)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "missing")
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestServer(t)
	env.do(http.MethodGet, "/healthz", browser)
	rec := env.do(http.MethodGet, "/metrics", browser)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestTrackingPixelRoute(t *testing.T) {
	t.Parallel()

	env := newTestServer(t)
	rec := env.do(http.MethodGet, tracking.DefaultPath+"?job=x&bot=true", googlebot)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/gif", rec.Header().Get("Content-Type"))
}

func TestBotGetsPrerenderedHumanGetsSPA(t *testing.T) {
	t.Parallel()

	env := newTestServer(t)

	rec := env.do(http.MethodGet, "/job/seo-manager-acme-berlin", googlebot)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"@type":"JobPosting"`)
	require.Contains(t, rec.Header().Get("Cache-Control"), "public, max-age=43200")

	rec = env.do(http.MethodGet, "/job/seo-manager-acme-berlin", browser)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "spa shell", rec.Body.String())

	rec = env.do(http.MethodGet, "/", googlebot)
	require.Equal(t, prerender.EdgeHomepage, rec.Header().Get("X-Edge-Function"))

	rec = env.do(http.MethodGet, "/about", googlebot)
	require.Equal(t, "spa shell", rec.Body.String())
}

func TestGoneForAllTraffic(t *testing.T) {
	t.Parallel()

	env := newTestServer(t)
	require.Equal(t, "spa shell", env.do(http.MethodGet, "/job/closed-role", browser).Body.String())
	require.Equal(t, http.StatusGone, env.do(http.MethodGet, "/job/closed-role", googlebot).Code)

	env = newTestServer(t, func(o *Options) { o.GoneAllTraffic = true })
	rec := env.do(http.MethodGet, "/job/closed-role", browser)
	require.Equal(t, http.StatusGone, rec.Code)
	require.Equal(t, "public, max-age=86400", rec.Header().Get("Cache-Control"))
}

func TestDebugEdge(t *testing.T) {
	t.Parallel()

	env := newTestServer(t)
	env.gone.Get(t.Context())

	req := httptest.NewRequest(http.MethodGet, "/debug/edge?path=/job/closed-role&ua=Twitterbot/1.0", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "true", rec.Header().Get("X-Debug-Function"))

	var got edgeDebug
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "/job/closed-role", got.Path)
	require.True(t, got.IsBot)
	require.Equal(t, "Twitter", got.BotType)
	require.Equal(t, "social", got.BotClass)
	require.True(t, got.Handled)
	require.Equal(t, "closed-role", got.Slug)
	require.Equal(t, "set", got.Datastore)
	require.Equal(t, "https://seojobs.example", got.BaseURL)
	require.True(t, got.GoneListed)
	require.NotNil(t, got.GoneList)
	require.Equal(t, 1, got.GoneList.Size)
	require.True(t, got.GoneList.Loaded)
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	env := newTestServer(t, func(o *Options) {
		o.Fallback = http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	})
	rec := env.do(http.MethodGet, "/about", browser)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "internal server error")
}

func TestResponseWriterHijackBehavior(t *testing.T) {
	t.Parallel()

	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	_, _, err := rw.Hijack()
	require.EqualError(t, err, "hijacker not supported")

	h := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	rw = &responseWriter{ResponseWriter: h}
	conn, buf, err := rw.Hijack()
	require.NoError(t, err)
	require.NotNil(t, buf)
	require.NoError(t, conn.Close())
	require.NoError(t, h.CloseClient())
}

// --- helpers/fakes ---

type fakeIDGen struct {
	mu  sync.Mutex
	ids []string
}

func (f *fakeIDGen) NewID() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ids) == 0 {
		return "id-default", nil
	}
	id := f.ids[0]
	f.ids = f.ids[1:]
	return id, nil
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	client net.Conn
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, client := net.Pipe()
	h.client = client
	return server, bufio.NewReadWriter(bufio.NewReader(client), bufio.NewWriter(client)), nil
}

func (h *hijackableRecorder) CloseClient() error {
	if h.client != nil {
		if err := h.client.Close(); err != nil {
			return fmt.Errorf("close hijacker client: %w", err)
		}
	}
	return nil
}
