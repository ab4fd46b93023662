// Package strings provides string list normalization used by config loading.
package strings

import (
	"strings"
)

// DedupeAndTrim drops empty entries and duplicates after trimming whitespace.
// Order of first occurrence is preserved.
func DedupeAndTrim(values []string) []string {
	return dedupe(values, strings.TrimSpace)
}

// CookieDomains normalizes a list of cookie domains: lowercased, trimmed and
// prefixed with a dot so the entry also covers subdomains.
//
//	CookieDomains([]string{" Google.com", ".google.com", "gstatic.com"})
//	// Returns: []string{".google.com", ".gstatic.com"}
func CookieDomains(values []string) []string {
	return dedupe(values, func(v string) string {
		v = strings.ToLower(strings.TrimSpace(v))
		v = strings.TrimLeft(v, ".")
		if v == "" {
			return ""
		}
		return "." + v
	})
}

func dedupe(values []string, normalize func(string) string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		n := normalize(v)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		result = append(result, n)
	}
	return result
}
