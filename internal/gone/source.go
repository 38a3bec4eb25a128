package gone

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// Source yields the raw list contents.
type Source interface {
	Fetch(ctx context.Context) (io.ReadCloser, error)
	String() string
}

// HTTPSource downloads the list from a URL, typically the site's own
// /410-urls.txt.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource builds an HTTPSource. A nil client gets a 10s timeout client.
func NewHTTPSource(rawURL string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSource{url: rawURL, client: client}
}

// Fetch issues a GET and fails on any non-2xx status.
func (s *HTTPSource) Fetch(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: HTTP %d", s.url, resp.StatusCode)
	}
	return resp.Body, nil
}

func (s *HTTPSource) String() string { return s.url }

// GCSSource reads the list from a Cloud Storage object.
type GCSSource struct {
	client *storage.Client
	bucket string
	object string
}

// NewGCSSource builds a GCSSource for gs://bucket/object.
func NewGCSSource(client *storage.Client, location string) (*GCSSource, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	bucket, object, err := parseGSURI(location)
	if err != nil {
		return nil, err
	}
	return &GCSSource{client: client, bucket: bucket, object: object}, nil
}

// Fetch opens a reader on the object.
func (s *GCSSource) Fetch(ctx context.Context) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open gs://%s/%s: %w", s.bucket, s.object, err)
	}
	return r, nil
}

func (s *GCSSource) String() string { return fmt.Sprintf("gs://%s/%s", s.bucket, s.object) }

// FileSource reads the list from local disk.
type FileSource struct {
	path string
}

// NewFileSource builds a FileSource.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Fetch opens the file.
func (s *FileSource) Fetch(context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open gone list: %w", err)
	}
	return f, nil
}

func (s *FileSource) String() string { return s.path }

// IsGCS reports whether location names a Cloud Storage object.
func IsGCS(location string) bool {
	return strings.HasPrefix(location, "gs://")
}

// NewSource picks a Source by location scheme. gs:// locations need a
// storage client; http(s) locations use httpClient.
func NewSource(location string, gcs *storage.Client, httpClient *http.Client) (Source, error) {
	switch {
	case location == "":
		return nil, fmt.Errorf("gone list location is required")
	case IsGCS(location):
		return NewGCSSource(gcs, location)
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return NewHTTPSource(location, httpClient), nil
	default:
		return NewFileSource(location), nil
	}
}

func parseGSURI(location string) (string, string, error) {
	rest, ok := strings.CutPrefix(location, "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a gs:// location: %q", location)
	}
	bucket, object, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("gs location must be gs://bucket/object: %q", location)
	}
	return bucket, object, nil
}
