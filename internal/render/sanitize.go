package render

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var punctuation = strings.NewReplacer(
	"“", `"`, "”", `"`, "„", `"`,
	"‘", "'", "’", "'", "‚", "'",
	"–", "-", "—", "-",
	"…", "...",
	"\u00a0", " ",
)

// Sanitize normalizes text to NFC and folds typographic punctuation to ASCII.
// HTML escaping is left to the templates.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return punctuation.Replace(norm.NFC.String(s))
}

// Truncate cuts s to at most n runes and appends an ellipsis when it did.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:n]), " ") + "..."
}
