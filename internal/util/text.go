package util

import (
	"regexp"
	"sort"
	"strings"
)

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9 ]+`)
var multiSpaceRe = regexp.MustCompile(`\s+`)

// CleanName lowercases a name and strips punctuation so that spelling
// variants of the same organization compare equal in the clean-name index.
func CleanName(name string) string {
	s := strings.ToLower(name)
	s = nonAlnumRe.ReplaceAllString(s, " ")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// DeduplicateAndSortByFrequency returns the distinct values ordered by how
// often they appear, most frequent first. Ties keep first-seen order.
func DeduplicateAndSortByFrequency(values []string) []string {
	counts := make(map[string]int, len(values))
	firstSeen := make(map[string]int, len(values))
	for i, v := range values {
		if _, ok := counts[v]; !ok {
			firstSeen[v] = i
		}
		counts[v]++
	}
	out := make([]string, 0, len(counts))
	for v := range counts {
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return firstSeen[out[i]] < firstSeen[out[j]]
	})
	return out
}

// ModalString returns the most frequent string, breaking ties by first
// occurrence. Empty input returns "".
func ModalString(values []string) string {
	ranked := DeduplicateAndSortByFrequency(values)
	if len(ranked) == 0 {
		return ""
	}
	return ranked[0]
}

// SanitizeText strips invalid UTF-8 and NUL bytes before persistence.
func SanitizeText(value string) string {
	if value == "" {
		return value
	}
	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}
