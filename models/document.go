package models

import "time"

// NormalizedRow is one typed spreadsheet row. Values are keyed by logical
// field name and hold string, int64, float64, decimal, bool, Identifier or
// nil. Raw keeps the original cells (by header) for error attribution.
type NormalizedRow struct {
	SourceRow int
	Values    map[string]any
	Raw       map[string]string
}

func NewNormalizedRow(sourceRow int) NormalizedRow {
	return NormalizedRow{
		SourceRow: sourceRow,
		Values:    map[string]any{},
		Raw:       map[string]string{},
	}
}

// String returns the value as a string, "" when absent or differently typed.
func (r NormalizedRow) String(field string) string {
	s, _ := r.Values[field].(string)
	return s
}

// ID returns a resolved reference, zero Identifier when absent.
func (r NormalizedRow) ID(field string) Identifier {
	id, _ := r.Values[field].(Identifier)
	return id
}

// Document is one header plus its lines, identified by the natural key.
// Lines preserve spreadsheet order; SourceRows holds every contributing row
// index for error attribution.
type Document struct {
	Key        string
	Header     NormalizedRow
	Lines      []NormalizedRow
	SourceRows []int
}

// UpsertPlan is the executor's decision for one document.
type UpsertPlan struct {
	Kind       PlanKind
	ExistingID int64
	Header     map[string]any
	Lines      []LineCommand
	Reason     string
}

// Outcome is the per-document result the reporter accumulates. The sum of
// outcomes always equals the number of input rows.
type Outcome struct {
	Kind        OutcomeKind
	DocumentKey string
	SourceRows  []int
	Plan        PlanKind
	Reason      string
	RemoteID    int64
	FinishedAt  time.Time
}
