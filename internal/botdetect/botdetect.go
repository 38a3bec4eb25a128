// Package botdetect classifies User-Agent strings as crawler or human traffic.
package botdetect

import "strings"

// botPatterns are known crawler User-Agent substrings (lowercase).
var botPatterns = []string{
	// search engines
	"adsbot", "applebot", "baiduspider", "googlebot", "mediapartners-google",
	"yandex", "yandexbot", "bingbot", "naver", "baidu", "bing", "google",
	"google-inspectiontool",
	// LLM crawlers
	"gptbot", "amazonbot", "anthropic", "bytespider", "ccbot", "chatgpt",
	"claudebot", "claude", "oai-searchbot", "perplexity", "youbot",
	// social unfurlers
	"facebook", "facebookexternalhit", "meta-external", "twitterbot", "linkedinbot",
	// other crawlers
	"slurp", "duckduckbot", "whatsapp", "telegram",
}

// socialPatterns identify link-preview fetchers that revisit rarely.
var socialPatterns = []string{"facebookexternalhit", "twitterbot", "linkedinbot"}

// Classes used as metric labels.
const (
	ClassSocial = "social"
	ClassSearch = "search"
	ClassHuman  = "human"
)

// Patterns returns a copy of the crawler token list.
func Patterns() []string {
	return append([]string(nil), botPatterns...)
}

// IsBot reports whether ua contains any known crawler token, case-insensitively.
func IsBot(ua string) bool {
	return containsAny(strings.ToLower(ua), botPatterns)
}

// IsSocialPreview reports whether ua belongs to a social link unfurler.
func IsSocialPreview(ua string) bool {
	return containsAny(strings.ToLower(ua), socialPatterns)
}

// Class buckets ua into social, search or human.
func Class(ua string) string {
	switch {
	case IsSocialPreview(ua):
		return ClassSocial
	case IsBot(ua):
		return ClassSearch
	default:
		return ClassHuman
	}
}

// Type names the crawler family for analytics. Order matters: the first
// matching family wins.
func Type(ua string) string {
	lower := strings.ToLower(ua)
	switch {
	case strings.Contains(lower, "googlebot"):
		return "Google"
	case strings.Contains(lower, "bingbot"):
		return "Bing"
	case strings.Contains(lower, "facebook"):
		return "Facebook"
	case strings.Contains(lower, "linkedin"):
		return "LinkedIn"
	case strings.Contains(lower, "twitter"):
		return "Twitter"
	case strings.Contains(lower, "gptbot"):
		return "ChatGPT"
	case strings.Contains(lower, "claude"):
		return "Claude"
	default:
		return "Other"
	}
}

func containsAny(lower string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
