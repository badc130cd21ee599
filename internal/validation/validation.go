package validation

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxKeywordLength is the longest keyword, in runes, accepted for analysis or storage.
const MaxKeywordLength = 200

// NormalizeKeyword trims surrounding whitespace and applies Unicode NFC so that
// visually identical keywords compare equal.
func NormalizeKeyword(keyword string) string {
	return norm.NFC.String(strings.TrimSpace(keyword))
}

// ValidateKeyword checks that a normalized keyword is non-empty, not too long,
// and free of control characters.
func ValidateKeyword(keyword string) (bool, string) {
	if keyword == "" {
		return false, "keyword is required"
	}
	if !utf8.ValidString(keyword) {
		return false, "keyword must be valid UTF-8"
	}
	if utf8.RuneCountInString(keyword) > MaxKeywordLength {
		return false, "keyword is too long"
	}
	for _, r := range keyword {
		if unicode.IsControl(r) {
			return false, "keyword must not contain control characters"
		}
	}
	return true, ""
}

// ValidateURL checks if a URL is valid and uses an allowed scheme (http/https only).
// This prevents javascript:, data:, vbscript:, and other dangerous URL schemes.
func ValidateURL(urlStr string) (bool, string) {
	if urlStr == "" {
		return false, "URL is required"
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return false, "Invalid URL format"
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false, "URL must use http:// or https:// scheme"
	}

	if u.Host == "" {
		return false, "URL must have a valid host"
	}

	return true, ""
}
