package normalize

import (
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/erp_importer/models"
)

// Error is a normalization failure attributed to one field of one row.
type Error struct {
	Field     string
	SourceRow int
	Message   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("row %d: field %s: %s", e.SourceRow, e.Field, e.Message)
}

// Row types one raw spreadsheet row against the given field specs. raw is
// keyed by canonical header. Warnings report soft substitutions (a missing
// required date replaced by now). The normalizer never talks to the ERP.
func Row(fields []models.FieldSpec, raw map[string]string, sourceRow int, now time.Time) (models.NormalizedRow, []string, error) {
	row := models.NewNormalizedRow(sourceRow)
	for k, v := range raw {
		row.Raw[k] = v
	}

	var warnings []string
	for _, field := range fields {
		cell := strings.TrimSpace(lookupCell(field, raw))

		if cell == "" {
			switch {
			case field.Required && (field.Type == models.FieldDate || field.Type == models.FieldDateTime):
				// A missing document date gets the invocation timestamp
				// instead of dropping the row.
				row.Values[field.Name] = formatFor(field.Type, now)
				warnings = append(warnings, fmt.Sprintf("field %s missing, substituted current timestamp", field.Name))
			case field.Required:
				return row, warnings, &Error{Field: field.Name, SourceRow: sourceRow, Message: "required value missing"}
			}
			continue
		}

		value, err := coerce(field, cell)
		if err != nil {
			return row, warnings, &Error{Field: field.Name, SourceRow: sourceRow, Message: err.Error()}
		}
		if value != nil {
			row.Values[field.Name] = value
		}
	}
	return row, warnings, nil
}

func coerce(field models.FieldSpec, cell string) (any, error) {
	switch field.Type {
	case models.FieldString:
		return Truncate(strings.TrimSpace(cell), field.MaxLen), nil
	case models.FieldZip:
		return Zip(cell), nil
	case models.FieldPhone:
		return Truncate(Phone(cell), field.MaxLen), nil
	case models.FieldInt:
		n, err := ParseQuantity(cell)
		if err != nil {
			return nil, err
		}
		return n, nil
	case models.FieldFloat:
		d, err := ParseDecimal(cell)
		if err != nil {
			return nil, err
		}
		return d, nil
	case models.FieldDate, models.FieldDateTime:
		t, err := ParseDate(cell)
		if err != nil {
			return nil, err
		}
		return formatFor(field.Type, t), nil
	case models.FieldBool:
		return ParseBool(cell, field.BoolDefault), nil
	case models.FieldDiscount:
		d, err := ParseDiscount(cell)
		if err != nil {
			return nil, err
		}
		return d, nil
	case models.FieldReference:
		return Clean(cell), nil
	}
	return nil, fmt.Errorf("unknown field type %q", field.Type)
}

func formatFor(t models.FieldType, when time.Time) string {
	if t == models.FieldDateTime {
		return FormatDateTime(when)
	}
	return FormatDate(when)
}

// lookupCell finds the cell for a field under any of its declared headers.
func lookupCell(field models.FieldSpec, raw map[string]string) string {
	for _, col := range field.Columns() {
		if v, ok := raw[CanonicalHeader(col)]; ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
