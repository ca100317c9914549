package normalize

import (
	"github.com/ttacon/libphonenumber"
)

// DefaultPhoneRegion applies to numbers typed without a country code.
var DefaultPhoneRegion = "TH"

// Phone formats a phone cell into international notation when it parses as
// a valid number for the default region; otherwise the cleaned original is
// kept, since the sheets carry plenty of free-form extensions.
func Phone(s string) string {
	cleaned := Clean(s)
	if cleaned == "" {
		return ""
	}
	parsed, err := libphonenumber.Parse(cleaned, DefaultPhoneRegion)
	if err != nil || !libphonenumber.IsValidNumber(parsed) {
		return cleaned
	}
	return libphonenumber.Format(parsed, libphonenumber.INTERNATIONAL)
}
