// Package rest talks to the hosted PostgREST endpoint fronting the jobs
// database.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/JakeFAU/jobboard-prerender/internal/store"
	"github.com/JakeFAU/jobboard-prerender/internal/vacancy"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config holds the endpoint credentials.
type Config struct {
	URL         string
	Key         string
	Table       string
	VisitsTable string
	Timeout     time.Duration
}

// Client queries PostgREST with plain filtered GETs.
type Client struct {
	baseURL     string
	key         string
	table       string
	visitsTable string
	http        *http.Client
}

// StatusError reports a non-2xx reply.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("datastore returned HTTP %d", e.Code)
	}
	return fmt.Sprintf("datastore returned HTTP %d: %s", e.Code, e.Body)
}

// New builds a Client. Missing credentials are not an error here; every call
// then fails with store.ErrNotConfigured.
func New(cfg Config, httpClient *http.Client) (*Client, error) {
	table := cfg.Table
	if table == "" {
		table = "jobs"
	}
	visits := cfg.VisitsTable
	if visits == "" {
		visits = "bot_visits"
	}
	for _, name := range []string{table, visits} {
		if !validTableName.MatchString(name) {
			return nil, fmt.Errorf("invalid table name %q", name)
		}
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.URL, "/"),
		key:         cfg.Key,
		table:       table,
		visitsTable: visits,
		http:        httpClient,
	}, nil
}

// Configured reports whether both URL and key are present.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != "" && c.key != ""
}

// FindBySlug implements store.Jobs.
func (c *Client) FindBySlug(ctx context.Context, slug string) ([]vacancy.Job, error) {
	q := url.Values{}
	q.Set("slug", "eq."+slug)
	q.Set("limit", "1")
	return c.query(ctx, q)
}

// All implements store.Jobs.
func (c *Client) All(ctx context.Context) ([]vacancy.Job, error) {
	q := url.Values{}
	q.Set("select", "*")
	return c.query(ctx, q)
}

// Recent implements store.Jobs.
func (c *Client) Recent(ctx context.Context) ([]vacancy.Job, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "created_at.desc")
	return c.query(ctx, q)
}

// InsertVisits implements store.VisitWriter with a single bulk POST.
func (c *Client) InsertVisits(ctx context.Context, visits []store.Visit) error {
	if len(visits) == 0 {
		return nil
	}
	if !c.Configured() {
		return store.ErrNotConfigured
	}
	body, err := json.Marshal(visits)
	if err != nil {
		return fmt.Errorf("marshal visits: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(c.visitsTable, nil), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Prefer", "return=minimal")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("insert visits: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // body drained below
	if err := checkStatus(resp); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) query(ctx context.Context, q url.Values) ([]vacancy.Job, error) {
	if !c.Configured() {
		return nil, store.ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(c.table, q), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.authorize(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.table, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	var jobs []vacancy.Job
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.table, err)
	}
	return jobs, nil
}

func (c *Client) endpoint(table string, q url.Values) string {
	u := c.baseURL + "/rest/v1/" + table
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
}
