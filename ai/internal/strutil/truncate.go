// Package strutil provides string helpers shared by the recognition code.
package strutil

import "strings"

// Excerpt flattens whitespace runs (including newlines) to single spaces and
// cuts the result to at most maxLen runes, appending "..." when cut.
// Returns empty string if maxLen <= 0.
func Excerpt(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	flat := strings.Join(strings.Fields(s), " ")
	runes := []rune(flat)
	if len(runes) <= maxLen {
		return flat
	}
	return string(runes[:maxLen]) + "..."
}
