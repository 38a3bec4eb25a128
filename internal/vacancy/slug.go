package vacancy

import (
	"regexp"
	"strings"
)

var nonSlugRun = regexp.MustCompile(`[^a-z0-9]+`)

// Slug derives the URL key for a posting from its title, company and city.
// Runs of anything outside [a-z0-9] collapse to a single dash.
func Slug(title, company, city string) string {
	joined := strings.ToLower(title + "-" + company + "-" + city)
	return strings.Trim(nonSlugRun.ReplaceAllString(joined, "-"), "-")
}
