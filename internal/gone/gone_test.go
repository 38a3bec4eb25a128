package gone

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobboard-prerender/internal/clock/manual"
)

const sampleList = `# removed postings
https://seo-vacancy.eu/job/old-role-acme-berlin

job/closed-role-beta-paris
   /job/spaced-role-gamma-rome
https://seo-vacancy.eu
`

func TestParseNormalizesEntries(t *testing.T) {
	t.Parallel()

	set, err := Parse(strings.NewReader(sampleList))
	require.NoError(t, err)
	require.Equal(t, []string{
		"/",
		"/job/closed-role-beta-paris",
		"/job/old-role-acme-berlin",
		"/job/spaced-role-gamma-rome",
	}, set.Paths())
}

func TestParseKeepsUnparseableURLVerbatim(t *testing.T) {
	t.Parallel()

	set, err := Parse(strings.NewReader("http://bad host/%zz\n"))
	require.NoError(t, err)
	require.True(t, set.Contains("http://bad host/%zz"))
}

func TestSetContainsToleratesTrailingSlash(t *testing.T) {
	t.Parallel()

	set := NewSet("/job/a")
	require.True(t, set.Contains("/job/a"))
	require.True(t, set.Contains("/job/a/"))
	require.False(t, set.Contains("/job/b"))
	require.False(t, NewSet().Contains("/"))
}

type stubSource struct {
	body  atomic.Value
	fail  atomic.Bool
	calls atomic.Int32
}

func newStubSource(body string) *stubSource {
	s := &stubSource{}
	s.body.Store(body)
	return s
}

func (s *stubSource) Fetch(context.Context) (io.ReadCloser, error) {
	s.calls.Add(1)
	if s.fail.Load() {
		return nil, errors.New("source offline")
	}
	body, _ := s.body.Load().(string)
	return io.NopCloser(strings.NewReader(body)), nil
}

func (s *stubSource) String() string { return "stub" }

func TestCacheMemoizesWithinTTL(t *testing.T) {
	t.Parallel()

	clk := manual.New(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	src := newStubSource("/job/a\n")
	cache := NewCache(src, CacheConfig{Clock: clk})

	require.True(t, cache.Contains(context.Background(), "/job/a"))
	src.body.Store("/job/b\n")
	clk.Advance(4 * time.Minute)
	require.True(t, cache.Contains(context.Background(), "/job/a"))
	require.Equal(t, int32(1), src.calls.Load())

	clk.Advance(time.Minute)
	require.False(t, cache.Contains(context.Background(), "/job/a"))
	require.True(t, cache.Contains(context.Background(), "/job/b"))
	require.Equal(t, int32(2), src.calls.Load())
}

func TestCacheFailsOpen(t *testing.T) {
	t.Parallel()

	clk := manual.New(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	src := newStubSource("/job/a\n")
	src.fail.Store(true)
	cache := NewCache(src, CacheConfig{Clock: clk})

	require.Empty(t, cache.Get(context.Background()))
	require.Error(t, cache.Refresh(context.Background()))
	_, _, loaded := cache.Stats()
	require.False(t, loaded)

	src.fail.Store(false)
	require.NoError(t, cache.Refresh(context.Background()))
	require.True(t, cache.Contains(context.Background(), "/job/a"))

	src.fail.Store(true)
	clk.Advance(10 * time.Minute)
	require.True(t, cache.Contains(context.Background(), "/job/a"), "previous list kept after failure")
	size, age, loaded := cache.Stats()
	require.True(t, loaded)
	require.Equal(t, 1, size)
	require.Equal(t, 10*time.Minute, age)
}

func TestCacheWithoutSourceIsEmpty(t *testing.T) {
	t.Parallel()

	cache := NewCache(nil, CacheConfig{})
	require.Empty(t, cache.Get(context.Background()))
	require.Nil(t, cache.Source())
}

func TestHTTPSource(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/410-urls.txt" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, "/job/x\n")
	}))
	defer srv.Close()

	ok := NewHTTPSource(srv.URL+"/410-urls.txt", srv.Client())
	rc, err := ok.Fetch(context.Background())
	require.NoError(t, err)
	set, err := Parse(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	require.True(t, set.Contains("/job/x"))

	missing := NewHTTPSource(srv.URL+"/nope.txt", srv.Client())
	_, err = missing.Fetch(context.Background())
	require.ErrorContains(t, err, "HTTP 404")
}

func TestFileSource(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "410-urls.txt")
	require.NoError(t, os.WriteFile(path, []byte("job/file-entry\n"), 0o600))

	src, err := NewSource(path, nil, nil)
	require.NoError(t, err)
	rc, err := src.Fetch(context.Background())
	require.NoError(t, err)
	defer rc.Close() //nolint:errcheck // test
	set, err := Parse(rc)
	require.NoError(t, err)
	require.True(t, set.Contains("/job/file-entry"))

	_, err = NewFileSource(filepath.Join(t.TempDir(), "missing")).Fetch(context.Background())
	require.Error(t, err)
}

func TestNewSourceSelection(t *testing.T) {
	t.Parallel()

	_, err := NewSource("", nil, nil)
	require.Error(t, err)

	src, err := NewSource("https://example.com/410-urls.txt", nil, nil)
	require.NoError(t, err)
	require.IsType(t, &HTTPSource{}, src)

	_, err = NewSource("gs://bucket/410.txt", nil, nil)
	require.ErrorContains(t, err, "storage client is required")
}

func TestParseGSURI(t *testing.T) {
	t.Parallel()

	bucket, object, err := parseGSURI("gs://site-assets/lists/410-urls.txt")
	require.NoError(t, err)
	require.Equal(t, "site-assets", bucket)
	require.Equal(t, "lists/410-urls.txt", object)

	for _, bad := range []string{"gs://bucket", "gs:///obj", "s3://bucket/obj"} {
		_, _, err := parseGSURI(bad)
		require.Error(t, err, bad)
	}
}
