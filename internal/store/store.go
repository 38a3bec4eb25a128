package store

import (
	"context"
	"errors"
	"time"

	"github.com/JakeFAU/jobboard-prerender/internal/vacancy"
)

// ErrNotConfigured is returned by datastore clients missing credentials.
var ErrNotConfigured = errors.New("datastore is not configured")

// Jobs reads job rows.
type Jobs interface {
	// FindBySlug filters on the slug column, returning at most one row.
	FindBySlug(ctx context.Context, slug string) ([]vacancy.Job, error)
	// All returns every row in datastore order.
	All(ctx context.Context) ([]vacancy.Job, error)
	// Recent returns every row, newest created_at first.
	Recent(ctx context.Context) ([]vacancy.Job, error)
}

// Visit is one row of the bot_visits table.
type Visit struct {
	JobSlug     string    `json:"job_slug,omitempty"`
	BotType     string    `json:"bot_type"`
	UserAgent   string    `json:"user_agent"`
	IPAddress   string    `json:"ip_address,omitempty"`
	Prerendered bool      `json:"prerendered"`
	VisitedAt   time.Time `json:"visited_at"`
	Referrer    string    `json:"referrer,omitempty"`
}

// VisitWriter appends bot visits.
type VisitWriter interface {
	InsertVisits(ctx context.Context, visits []Visit) error
}
