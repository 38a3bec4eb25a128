// Package cachepolicy computes the Cache-Control family of headers attached to
// prerendered responses.
package cachepolicy

import (
	"fmt"
	"net/http"
	"time"

	"github.com/JakeFAU/jobboard-prerender/internal/botdetect"
	"github.com/JakeFAU/jobboard-prerender/internal/vacancy"
)

// Freshness tiers for job pages.
const (
	Urgent  = time.Hour
	Soon    = 6 * time.Hour
	Default = 12 * time.Hour
)

const (
	day  = 24 * time.Hour
	week = 7 * day

	// DefaultProviderHeader is the hosting CDN's own cache header.
	DefaultProviderHeader = "Netlify-CDN-Cache-Control"

	headerCacheControl = "Cache-Control"
	headerCDN          = "CDN-Cache-Control"
)

// JobMaxAge tiers freshness by days left before the posting expires: three
// days or fewer gets an hour, seven or fewer six hours, anything else twelve.
func JobMaxAge(job vacancy.Job, now time.Time) time.Duration {
	days, ok := job.DaysUntilExpiry(now)
	switch {
	case !ok:
		return Default
	case days <= 3:
		return Urgent
	case days <= 7:
		return Soon
	default:
		return Default
	}
}

// ForJob returns the headers for a rendered job page. Social unfurlers get a
// flat week regardless of maxAge.
func ForJob(ua string, maxAge time.Duration, providerHeader string) http.Header {
	h := http.Header{}
	if botdetect.IsSocialPreview(ua) {
		h.Set(headerCacheControl, fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d", secs(week), secs(2*week)))
		h.Set(headerCDN, fmt.Sprintf("public, max-age=%d", secs(week)))
		return h
	}
	d := secs(maxAge)
	h.Set(headerCacheControl, fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d", d, 2*d))
	h.Set(headerCDN, fmt.Sprintf("public, max-age=%d", 2*d))
	if providerHeader != "" {
		h.Set(providerHeader, fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d", 2*d, secs(week)))
	}
	return h
}

// Homepage is the policy for the prerendered landing page.
func Homepage() http.Header {
	h := http.Header{}
	h.Set(headerCacheControl, fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d", secs(day), secs(2*day)))
	h.Set(headerCDN, fmt.Sprintf("public, max-age=%d", secs(12*time.Hour)))
	return h
}

// Gone caches permanent removals for a day.
func Gone() http.Header { return fixed(day) }

// NotFound caches a missing job for an hour.
func NotFound() http.Header { return fixed(time.Hour) }

// Failure keeps configuration and upstream errors short-lived.
func Failure() http.Header { return fixed(5 * time.Minute) }

func fixed(d time.Duration) http.Header {
	h := http.Header{}
	h.Set(headerCacheControl, fmt.Sprintf("public, max-age=%d", secs(d)))
	return h
}

func secs(d time.Duration) int64 {
	return int64(d / time.Second)
}

// Apply copies policy headers onto dst, replacing existing values.
func Apply(dst, policy http.Header) {
	for k, v := range policy {
		dst[k] = append([]string(nil), v...)
	}
}
