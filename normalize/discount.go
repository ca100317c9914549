package normalize

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Discount is the parsed pair from a discount cell: a % suffix marks a
// percentage, anything else is a fixed amount.
type Discount struct {
	Percent decimal.Decimal
	Fixed   decimal.Decimal
}

func (d Discount) IsZero() bool { return d.Percent.IsZero() && d.Fixed.IsZero() }

// ParseDiscount splits a discount token into its (percent, fixed) pair.
func ParseDiscount(s string) (Discount, error) {
	cleaned := strings.TrimSpace(s)
	if strings.HasSuffix(cleaned, "%") {
		pct, err := ParseDecimal(strings.TrimSuffix(cleaned, "%"))
		if err != nil {
			return Discount{}, err
		}
		return Discount{Percent: pct}, nil
	}
	fixed, err := ParseDecimal(cleaned)
	if err != nil {
		return Discount{}, err
	}
	return Discount{Fixed: fixed}, nil
}
