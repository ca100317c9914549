package normalize

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/erp_importer/models"
	"github.com/shopspring/decimal"
)

func TestParseDateDayFirst(t *testing.T) {
	got, err := ParseDate("15/8/2024")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if got.Day() != 15 || got.Month() != time.August || got.Year() != 2024 {
		t.Fatalf("15/8/2024 parsed as %v, want 15 August 2024", got)
	}
}

func TestParseDateAmbiguousPrefersDayFirst(t *testing.T) {
	got, err := ParseDate("2/3/2024")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if got.Day() != 2 || got.Month() != time.March {
		t.Fatalf("2/3/2024 parsed as %v, want 2 March", got)
	}
}

func TestParseDateISO(t *testing.T) {
	got, err := ParseDate("2024-08-15")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if FormatDate(got) != "2024-08-15" {
		t.Fatalf("got %s", FormatDate(got))
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	if _, err := ParseDate("next tuesday"); err == nil {
		t.Fatal("expected error for unparseable date")
	}
	if _, err := ParseDate(""); err == nil {
		t.Fatal("expected error for empty date")
	}
}

func TestParseDecimal(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1,234.50", "1234.5"},
		{"฿1,000", "1000"},
		{"$ 99.99", "99.99"},
		{"-", "0"},
		{"n/a", "0"},
		{"", "0"},
		{"-12.5", "-12.5"},
		{"1 234", "1234"},
	}
	for _, tc := range cases {
		got, err := ParseDecimal(tc.in)
		if err != nil {
			t.Fatalf("ParseDecimal(%q): %v", tc.in, err)
		}
		if got.String() != tc.want {
			t.Fatalf("ParseDecimal(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
	if _, err := ParseDecimal("twelve"); err == nil {
		t.Fatal("expected error for non-numeric cell")
	}
}

func TestParseQuantityClamps(t *testing.T) {
	got, err := ParseQuantity("99999999999999")
	if err != nil {
		t.Fatalf("ParseQuantity: %v", err)
	}
	if got != 1<<31-1 {
		t.Fatalf("got %d, want int32 max", got)
	}
}

func TestParseBool(t *testing.T) {
	for _, token := range []string{"yes", "Y", "1", "1.0", "true", "ใช่", "บริษัท"} {
		if !ParseBool(token, false) {
			t.Fatalf("%q should parse true", token)
		}
	}
	for _, token := range []string{"no", "N", "0", "0.0", "false", "ไม่ใช่"} {
		if ParseBool(token, true) {
			t.Fatalf("%q should parse false", token)
		}
	}
	// unknown falls back to the field default
	if !ParseBool("maybe", true) {
		t.Fatal("unknown token should fall back to default")
	}
	if ParseBool("maybe", false) {
		t.Fatal("unknown token should fall back to default")
	}
}

func TestZip(t *testing.T) {
	if got := Zip("10240.0"); got != "10240" {
		t.Fatalf("got %q", got)
	}
	if got := Zip("10240"); got != "10240" {
		t.Fatalf("got %q", got)
	}
	if got := Zip("A1.5"); got != "A1.5" {
		t.Fatalf("non-trailing-zero fraction must survive, got %q", got)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := Truncate("กรุงเทพมหานคร", 4); got != "กรุง" {
		t.Fatalf("got %q", got)
	}
	if got := Truncate("short", 0); got != "short" {
		t.Fatalf("zero max must not truncate, got %q", got)
	}
}

func TestPhoneKeepsFreeFormInput(t *testing.T) {
	// free-form extensions are not valid numbers and pass through cleaned
	if got := Phone("  02-123  ext 45 "); got != "02-123 ext 45" {
		t.Fatalf("got %q", got)
	}
	if got := Phone(""); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestParseDiscount(t *testing.T) {
	d, err := ParseDiscount("10%")
	if err != nil {
		t.Fatalf("ParseDiscount: %v", err)
	}
	if !d.Percent.Equal(decimal.NewFromInt(10)) || !d.Fixed.IsZero() {
		t.Fatalf("10%% parsed as %+v", d)
	}

	d, err = ParseDiscount("25.50")
	if err != nil {
		t.Fatalf("ParseDiscount: %v", err)
	}
	if !d.Fixed.Equal(decimal.NewFromFloat(25.5)) || !d.Percent.IsZero() {
		t.Fatalf("25.50 parsed as %+v", d)
	}
}

func TestRowRequiredDateSubstitutesNow(t *testing.T) {
	now := time.Date(2024, 8, 15, 10, 30, 0, 0, time.UTC)
	fields := []models.FieldSpec{
		{Name: "date_order", ERPField: "date_order", Type: models.FieldDateTime, Required: true},
	}
	row, warnings, err := Row(fields, map[string]string{}, 5, now)
	if err != nil {
		t.Fatalf("Row: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("want one substitution warning, got %v", warnings)
	}
	if row.String("date_order") != "2024-08-15 10:30:00" {
		t.Fatalf("got %q", row.String("date_order"))
	}
}

func TestRowRequiredStringMissingFails(t *testing.T) {
	fields := []models.FieldSpec{
		{Name: "name", ERPField: "name", Type: models.FieldString, Required: true},
	}
	_, _, err := Row(fields, map[string]string{}, 7, time.Now())
	if err == nil {
		t.Fatal("expected error for missing required field")
	}
	nerr, ok := err.(*Error)
	if !ok {
		t.Fatalf("want *Error, got %T", err)
	}
	if nerr.Field != "name" || nerr.SourceRow != 7 {
		t.Fatalf("error not attributed: %+v", nerr)
	}
}

func TestRowAliasLookup(t *testing.T) {
	fields := []models.FieldSpec{
		{Name: "partner", Aliases: []string{"old_code_partner"}, Type: models.FieldReference, Ref: models.RefPartner, Required: true},
	}
	row, _, err := Row(fields, map[string]string{"old_code_partner": " V-001 "}, 2, time.Now())
	if err != nil {
		t.Fatalf("Row: %v", err)
	}
	if row.String("partner") != "V-001" {
		t.Fatalf("got %q", row.String("partner"))
	}
}

func TestRowCoercions(t *testing.T) {
	fields := []models.FieldSpec{
		{Name: "qty", Type: models.FieldFloat},
		{Name: "count", Type: models.FieldInt},
		{Name: "zip", Type: models.FieldZip},
		{Name: "company", Type: models.FieldBool, BoolDefault: false},
	}
	raw := map[string]string{
		"qty":     "1,500.25",
		"count":   "12",
		"zip":     "10240.0",
		"company": "บริษัท",
	}
	row, _, err := Row(fields, raw, 3, time.Now())
	if err != nil {
		t.Fatalf("Row: %v", err)
	}
	qty := row.Values["qty"].(decimal.Decimal)
	if !qty.Equal(decimal.NewFromFloat(1500.25)) {
		t.Fatalf("qty = %s", qty)
	}
	if row.Values["count"].(int64) != 12 {
		t.Fatalf("count = %v", row.Values["count"])
	}
	if row.Values["zip"].(string) != "10240" {
		t.Fatalf("zip = %v", row.Values["zip"])
	}
	if row.Values["company"].(bool) != true {
		t.Fatalf("company = %v", row.Values["company"])
	}
}
