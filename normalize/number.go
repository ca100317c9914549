package normalize

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// zeroTokens are placeholder cells treated as zero rather than errors.
var zeroTokens = map[string]bool{
	"":     true,
	"-":    true,
	"n/a":  true,
	"na":   true,
	"none": true,
	"null": true,
}

// currencyMarkers are stripped before numeric parsing.
var currencyMarkers = []string{"฿", "$", "€", "thb", "usd", "baht", "บาท"}

// ParseDecimal turns a spreadsheet numeric cell into a decimal, tolerating
// currency markers, thousands separators and placeholder tokens.
func ParseDecimal(s string) (decimal.Decimal, error) {
	cleaned := strings.ToLower(strings.TrimSpace(s))
	if zeroTokens[cleaned] {
		return decimal.Zero, nil
	}
	for _, marker := range currencyMarkers {
		cleaned = strings.ReplaceAll(cleaned, marker, "")
	}
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.Join(strings.Fields(cleaned), "")
	if cleaned == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparseable number %q", s)
	}
	return d, nil
}

// ParseQuantity parses a count-like cell and clamps it to the 32-bit signed
// integer range, as quantities exceeding it are sheet artifacts.
func ParseQuantity(s string) (int64, error) {
	d, err := ParseDecimal(s)
	if err != nil {
		return 0, err
	}
	n := d.IntPart()
	if n > math.MaxInt32 {
		return math.MaxInt32, nil
	}
	if n < math.MinInt32 {
		return math.MinInt32, nil
	}
	return n, nil
}
