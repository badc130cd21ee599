package ingest

import (
	"strings"

	"github.com/john-revops11/keyword-gemini-insight/internal/validation"
)

// ParseKeywordInput splits pasted text into keywords: one per line, trimmed,
// empty lines dropped, and case-insensitive duplicates removed keeping the first.
func ParseKeywordInput(text string) []string {
	return CleanKeywords(strings.Split(text, "\n"))
}

// CleanKeywords normalizes a keyword list the same way ParseKeywordInput does.
func CleanKeywords(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		kw := validation.NormalizeKeyword(raw)
		if kw == "" {
			continue
		}
		key := fold(kw)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, kw)
	}
	return out
}
