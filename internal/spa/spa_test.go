package spa

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestStaticServesFilesAndFallsBackToIndex(t *testing.T) {
	t.Parallel()

	h := NewStatic(fstest.MapFS{
		"index.html":        {Data: []byte(`<div id="root"></div>`)},
		"assets/app.js":     {Data: []byte("console.log(1)")},
		"seo-job-board.svg": {Data: []byte("<svg/>")},
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/app.js", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "console.log(1)", rec.Body.String())

	for _, target := range []string{"/", "/job/seo-manager-acme-berlin", "/post-a-job"} {
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusOK, rec.Code, target)
		require.Equal(t, `<div id="root"></div>`, rec.Body.String(), target)
	}
}

func TestStaticWithoutIndexIs404(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NewStatic(fstest.MapFS{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/job/x", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProxyForwardsToOrigin(t *testing.T) {
	t.Parallel()

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen-Path", r.URL.Path)
		w.Header().Set("X-Seen-Forwarded", r.Header.Get("X-Forwarded-Host"))
		_, _ = io.WriteString(w, "spa shell")
	}))
	t.Cleanup(origin.Close)

	h, err := NewProxy(origin.URL, nil)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "http://seojobs.example/job/abc", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "spa shell", rec.Body.String())
	require.Equal(t, "/job/abc", rec.Header().Get("X-Seen-Path"))
	require.Equal(t, "seojobs.example", rec.Header().Get("X-Seen-Forwarded"))
}

func TestNewSelection(t *testing.T) {
	t.Parallel()

	h, err := New(Config{}, nil)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	_, err = New(Config{Origin: "not a url"}, nil)
	require.Error(t, err)

	_, err = New(Config{Dir: filepath.Join(t.TempDir(), "missing")}, nil)
	require.Error(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("shell"), 0o600))
	h, err = New(Config{Dir: dir}, nil)
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/job/x", nil))
	require.Equal(t, "shell", rec.Body.String())
}
