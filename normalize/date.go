package normalize

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// dayFirstLayouts cover the human-typed shapes seen in operator sheets. The
// year-first shapes come from exports. Order matters: day-first wins, so
// 15/8/2024 is 15 August, never 8 May.
var dateLayouts = []string{
	"2/1/2006",
	"02/01/2006",
	"2-1-2006",
	"02-01-2006",
	"2/1/2006 15:04:05",
	"02/01/2006 15:04:05",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
}

// ParseDate accepts both day-first and year-first date shapes.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// FormatDate emits the wire shape for date fields.
func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// FormatDateTime emits the wire shape for datetime fields.
func FormatDateTime(t time.Time) string { return t.Format(DateTimeLayout) }
