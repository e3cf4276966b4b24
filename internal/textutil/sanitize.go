package textutil

import "strings"

// Slug lowercases value and keeps ASCII letters and digits, joining other
// runs with single dashes. Returns fallback when nothing survives.
func Slug(value, fallback string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(value) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return fallback
	}
	return out
}

// Excerpt joins lines with spaces and truncates the result to limit runes,
// marking the cut with an ellipsis.
func Excerpt(lines []string, limit int) string {
	text := strings.Join(lines, " ")
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	if limit == 1 {
		return "…"
	}
	return string(runes[:limit-1]) + "…"
}
