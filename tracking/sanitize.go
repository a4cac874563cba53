package tracking

import (
	"regexp"
	"strings"
)

// =============================================================================
// TITLE SANITIZATION - Defense against rich-text editor input
// =============================================================================

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// SanitizeTitle strips HTML tags and collapses runs of whitespace.
// Returns the cleaned title; callers reject empty results.
func SanitizeTitle(title string) string {
	clean := htmlTagPattern.ReplaceAllString(title, " ")
	clean = whitespacePattern.ReplaceAllString(clean, " ")
	return strings.TrimSpace(clean)
}
