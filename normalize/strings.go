package normalize

import "strings"

// Clean trims and collapses runs of internal whitespace to single spaces.
func Clean(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}

// Truncate cuts to max runes; zero max means unlimited.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// Zip fixes numeric-shaped postal codes that arrive as floats from the
// spreadsheet layer: 10240.0 becomes "10240".
func Zip(s string) string {
	s = Clean(s)
	if idx := strings.LastIndex(s, "."); idx > 0 {
		if frac := s[idx+1:]; frac != "" && strings.Trim(frac, "0") == "" {
			return s[:idx]
		}
	}
	return s
}

// CanonicalHeader normalizes a column header for matching: lower-cased,
// whitespace collapsed.
func CanonicalHeader(s string) string {
	return strings.ToLower(Clean(s))
}
