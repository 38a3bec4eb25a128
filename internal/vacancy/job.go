// Package vacancy defines the job record served to crawlers and the helpers
// that derive slugs, expiry and salary facts from it.
package vacancy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Job mirrors a row of the jobs table as returned by the datastore.
type Job struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	CompanyName    string    `json:"company_name"`
	CompanyLogo    string    `json:"company_logo,omitempty"`
	CompanyWebsite string    `json:"company_website,omitempty"`
	Description    string    `json:"description"`
	Requirements   string    `json:"requirements,omitempty"`
	City           string    `json:"city"`
	SalaryMin      *float64  `json:"salary_min,omitempty"`
	SalaryMax      *float64  `json:"salary_max,omitempty"`
	SalaryCurrency string    `json:"salary_currency,omitempty"`
	HideSalary     bool      `json:"hide_salary"`
	Category       string    `json:"category,omitempty"`
	Tags           Tags      `json:"tags,omitempty"`
	JobURL         string    `json:"job_url,omitempty"`
	JobType        string    `json:"job_type,omitempty"`
	Duration       string    `json:"duration,omitempty"`
	Featured       bool      `json:"featured"`
	CreatedAt      Timestamp `json:"created_at"`
	StartDate      Timestamp `json:"start_date"`
	ExpiresAt      Timestamp `json:"expires_at"`
	Slug           string    `json:"slug,omitempty"`
}

const day = 24 * time.Hour

// CanonicalSlug returns the stored slug, deriving one when the column is empty.
func (j Job) CanonicalSlug() string {
	if j.Slug != "" {
		return j.Slug
	}
	return Slug(j.Title, j.CompanyName, j.City)
}

// Sluggable reports whether the job carries every field the slug is built from.
func (j Job) Sluggable() bool {
	return j.Title != "" && j.CompanyName != "" && j.City != ""
}

// Expired reports whether ExpiresAt is set and already in the past.
func (j Job) Expired(now time.Time) bool {
	return !j.ExpiresAt.IsZero() && j.ExpiresAt.Before(now)
}

// DaysUntilExpiry returns the ceiling of days left until ExpiresAt, falling
// back to CreatedAt. ok is false when neither date is known.
func (j Job) DaysUntilExpiry(now time.Time) (days int, ok bool) {
	ref := j.ExpiresAt
	if ref.IsZero() {
		ref = j.CreatedAt
	}
	if ref.IsZero() {
		return 0, false
	}
	return int(math.Ceil(float64(ref.Sub(now)) / float64(day))), true
}

// HasSalary reports whether both ends of the salary range are known and non-zero.
func (j Job) HasSalary() bool {
	return j.SalaryMin != nil && j.SalaryMax != nil && *j.SalaryMin != 0 && *j.SalaryMax != 0
}

// ShowSalary is HasSalary restricted to postings that do not hide it.
func (j Job) ShowSalary() bool {
	return j.HasSalary() && !j.HideSalary
}

// Currency defaults to EUR, the board's market.
func (j Job) Currency() string {
	if c := strings.TrimSpace(j.SalaryCurrency); c != "" {
		return strings.ToUpper(c)
	}
	return "EUR"
}

// Tags accepts either a JSON array or a comma separated string.
type Tags []string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Tags) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = nil
		return nil
	}
	if data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("decode tags string: %w", err)
		}
		*t = splitTags(raw)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("decode tags: %w", err)
	}
	*t = list
	return nil
}

func splitTags(raw string) Tags {
	var out Tags
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
