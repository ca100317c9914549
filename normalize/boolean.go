package normalize

import "strings"

// The sheets mix English, numeric and Thai boolean spellings. Keeping the
// synonym tables in one place means a new spelling is added once and tested
// in isolation.
var trueTokens = map[string]bool{
	"true":    true,
	"t":       true,
	"yes":     true,
	"y":       true,
	"1":       true,
	"1.0":     true,
	"ใช่":     true,
	"บริษัท":  true,
	"company": true,
}

var falseTokens = map[string]bool{
	"false":  true,
	"f":      true,
	"no":     true,
	"n":      true,
	"0":      true,
	"0.0":    true,
	"ไม่ใช่": true,
}

// ParseBool maps a cell onto a boolean; unknown tokens fall back to the
// field's declared default.
func ParseBool(s string, fallback bool) bool {
	token := strings.ToLower(strings.TrimSpace(s))
	if trueTokens[token] {
		return true
	}
	if falseTokens[token] {
		return false
	}
	return fallback
}
