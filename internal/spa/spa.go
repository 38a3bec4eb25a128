// Package spa builds the handler that human traffic and unhandled paths fall
// through to: a proxy to the single-page app origin, or its built assets.
package spa

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path"
	"strings"

	"go.uber.org/zap"
)

// Config selects the pass-through target. Origin wins over Dir.
type Config struct {
	Origin string
	Dir    string
}

// New returns the pass-through handler. With neither target configured every
// request gets 404.
func New(cfg Config, logger *zap.Logger) (http.Handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch {
	case cfg.Origin != "":
		return NewProxy(cfg.Origin, logger)
	case cfg.Dir != "":
		info, err := os.Stat(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("spa dir: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("spa dir %s is not a directory", cfg.Dir)
		}
		return NewStatic(os.DirFS(cfg.Dir)), nil
	default:
		logger.Warn("no spa origin or dir configured, pass-through requests get 404")
		return http.NotFoundHandler(), nil
	}
}

// NewProxy forwards requests to origin unchanged.
func NewProxy(origin string, logger *zap.Logger) (http.Handler, error) {
	target, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("parse spa origin: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("spa origin %q must be absolute", origin)
	}
	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Host = target.Host
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Warn("spa origin unreachable", zap.String("path", r.URL.Path), zap.Error(err))
			http.Error(w, "Bad Gateway", http.StatusBadGateway)
		},
	}
	return proxy, nil
}

// NewStatic serves files from fsys. Paths without a matching file get
// index.html so client-side routes resolve.
func NewStatic(fsys fs.FS) http.Handler {
	files := http.FileServerFS(fsys)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name != "" {
			if _, err := fs.Stat(fsys, name); err == nil {
				files.ServeHTTP(w, r)
				return
			} else if !errors.Is(err, fs.ErrNotExist) {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
		}
		index, err := fs.ReadFile(fsys, "index.html")
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			_, _ = w.Write(index)
		}
	})
}
