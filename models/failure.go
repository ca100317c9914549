package models

import "time"

// FailureRecord is one attributed failure. Mirrors what the failure
// workbook needs: the full original row plus category and message.
type FailureRecord struct {
	Timestamp   time.Time
	DocumentKey string
	SourceRow   int
	Category    ErrorCategory
	Message     string
	Raw         map[string]string
	Retryable   bool
}

// MissingReference is one unresolved symbolic reference, collected for the
// per-kind missing-reference workbooks.
type MissingReference struct {
	Kind        ReferenceKind
	Token       string
	DocumentKey string
	SourceRow   int
}
