package analytics

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/jobboard-prerender/internal/store"
)

// Source names the component that observed the visit.
type Source string

// Supported sources.
const (
	SourcePrerender Source = "prerender"
	SourcePixel     Source = "pixel"
)

// Event records one crawler visit.
type Event struct {
	// ID is assigned by the hub when left empty.
	ID     uuid.UUID `json:"id"`
	Source Source    `json:"source"`
	// JobSlug is set for job pages; Page names non-job pages such as "homepage".
	JobSlug string `json:"job_slug,omitempty"`
	Page    string `json:"page,omitempty"`
	// Status is the HTTP status served by the prerender layer. Zero for pixel hits.
	Status      int       `json:"status,omitempty"`
	BotType     string    `json:"bot_type"`
	UserAgent   string    `json:"user_agent"`
	IPAddress   string    `json:"ip_address,omitempty"`
	Prerendered bool      `json:"prerendered"`
	Referrer    string    `json:"referrer,omitempty"`
	VisitedAt   time.Time `json:"visited_at"`
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	switch e.Source {
	case SourcePrerender, SourcePixel:
	default:
		return fmt.Errorf("unknown source %q", e.Source)
	}
	if e.BotType == "" {
		return errors.New("bot type is required")
	}
	if e.Status < 0 {
		return errors.New("status must be >= 0")
	}
	return nil
}

// Visit converts the event to a bot_visits row. Page visits carry no slug.
func (e Event) Visit() store.Visit {
	return store.Visit{
		JobSlug:     e.JobSlug,
		BotType:     e.BotType,
		UserAgent:   e.UserAgent,
		IPAddress:   e.IPAddress,
		Prerendered: e.Prerendered,
		VisitedAt:   e.VisitedAt,
		Referrer:    e.Referrer,
	}
}
