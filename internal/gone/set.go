// Package gone maintains the list of permanently removed paths that are
// answered with 410 Gone.
package gone

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
)

// Set is a normalized collection of removed paths.
type Set map[string]struct{}

// NewSet builds a Set from already-normalized paths.
func NewSet(paths ...string) Set {
	s := make(Set, len(paths))
	for _, p := range paths {
		s[p] = struct{}{}
	}
	return s
}

// Contains matches path exactly or with a single trailing slash removed.
func (s Set) Contains(path string) bool {
	if _, ok := s[path]; ok {
		return true
	}
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		_, ok := s[strings.TrimSuffix(path, "/")]
		return ok
	}
	return false
}

// Paths returns the members in lexical order.
func (s Set) Paths() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Parse reads a newline-delimited list. Blank lines and lines starting with
// '#' are skipped. Absolute URLs are reduced to their path and bare entries
// gain a leading slash.
func Parse(r io.Reader) (Set, error) {
	set := Set{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if p, ok := normalize(scanner.Text()); ok {
			set[p] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan gone list: %w", err)
	}
	return set, nil
}

func normalize(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", false
	}
	if strings.HasPrefix(line, "http") {
		u, err := url.Parse(line)
		if err != nil {
			return line, true
		}
		if u.Path == "" {
			return "/", true
		}
		return u.Path, true
	}
	if strings.HasPrefix(line, "/") {
		return line, true
	}
	return "/" + line, true
}
