package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/erp_importer/models"
	"github.com/xuri/excelize/v2"
)

const maxExampleMessages = 3

// WriteFailureWorkbook writes the failure workbook into runDir and returns
// its path. Nothing is written when the run produced no failures and no
// skips.
func (r *Reporter) WriteFailureWorkbook(runDir string, ts time.Time) (string, error) {
	failures := r.failureSnapshot()
	skips := r.skipSnapshot()
	if len(failures) == 0 && len(skips) == 0 {
		return "", nil
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := writeFailedRows(f, failures); err != nil {
		return "", err
	}
	if err := writeCategories(f, failures, skips); err != nil {
		return "", err
	}
	if err := writeStatistics(f, r.Stats()); err != nil {
		return "", err
	}
	f.DeleteSheet("Sheet1")

	path := filepath.Join(runDir, fmt.Sprintf("failures_%s.xlsx", ts.Format("20060102_150405")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save failure workbook: %w", err)
	}
	return path, nil
}

// writeFailedRows reproduces every failed row verbatim (original cells by
// header) so the sheet can be fixed and re-imported as-is.
func writeFailedRows(f *excelize.File, failures []models.FailureRecord) error {
	const sheet = "Failed Rows"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	rawHeaders := collectRawHeaders(failures)
	headers := append([]string{"timestamp", "document", "source_row", "category", "error"}, rawHeaders...)
	if err := writeRow(f, sheet, 1, toCells(headers)); err != nil {
		return err
	}

	for i, rec := range failures {
		cells := []any{
			rec.Timestamp.Format("2006-01-02 15:04:05"),
			rec.DocumentKey,
			rec.SourceRow,
			string(rec.Category),
			rec.Message,
		}
		for _, h := range rawHeaders {
			cells = append(cells, rec.Raw[h])
		}
		if err := writeRow(f, sheet, i+2, cells); err != nil {
			return err
		}
	}
	return nil
}

// writeCategories summarizes failures per category plus skip reasons, with
// affected document counts and up to three example messages each.
func writeCategories(f *excelize.File, failures []models.FailureRecord, skips []models.Outcome) error {
	const sheet = "Error Categories"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	if err := writeRow(f, sheet, 1, toCells([]string{"category", "count", "documents", "examples"})); err != nil {
		return err
	}

	type bucket struct {
		count    int
		docs     map[string]bool
		examples []string
	}
	buckets := map[string]*bucket{}
	get := func(name string) *bucket {
		b := buckets[name]
		if b == nil {
			b = &bucket{docs: map[string]bool{}}
			buckets[name] = b
		}
		return b
	}
	for _, rec := range failures {
		b := get(string(rec.Category))
		b.count++
		if rec.DocumentKey != "" {
			b.docs[rec.DocumentKey] = true
		}
		if len(b.examples) < maxExampleMessages {
			b.examples = append(b.examples, rec.Message)
		}
	}
	// Skips are reported alongside errors but counted separately.
	for _, o := range skips {
		b := get("skip:" + o.Reason)
		b.count++
		if o.DocumentKey != "" {
			b.docs[o.DocumentKey] = true
		}
		if len(b.examples) < maxExampleMessages && o.DocumentKey != "" {
			b.examples = append(b.examples, o.DocumentKey)
		}
	}

	names := make([]string, 0, len(buckets))
	for name := range buckets {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		b := buckets[name]
		cells := []any{name, b.count, len(b.docs), strings.Join(b.examples, "; ")}
		if err := writeRow(f, sheet, i+2, cells); err != nil {
			return err
		}
	}
	return nil
}

func writeStatistics(f *excelize.File, s Stats) error {
	const sheet = "Statistics"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	rows := [][]any{
		{"total rows", s.TotalRows},
		{"processed rows", s.ProcessedRows},
		{"documents", s.Documents},
		{"succeeded", s.Success},
		{"skipped", s.Skipped},
		{"failed", s.Failed},
		{"failure records", s.FailureCount},
		{"success rate", fmt.Sprintf("%.1f%%", s.SuccessRate())},
		{"started", s.Started.Format("2006-01-02 15:04:05")},
	}
	if !s.FirstOutcome.IsZero() {
		rows = append(rows,
			[]any{"first outcome", s.FirstOutcome.Format("2006-01-02 15:04:05")},
			[]any{"last outcome", s.LastOutcome.Format("2006-01-02 15:04:05")},
		)
	}
	for i, cells := range rows {
		if err := writeRow(f, sheet, i+1, cells); err != nil {
			return err
		}
	}
	return nil
}

// WriteMissingWorkbooks writes one workbook per reference kind that had
// unresolved tokens and returns the paths.
func (r *Reporter) WriteMissingWorkbooks(runDir string, ts time.Time) ([]string, error) {
	missing := r.missingSnapshot()
	if len(missing) == 0 {
		return nil, nil
	}

	byKind := map[models.ReferenceKind][]models.MissingReference{}
	for _, m := range missing {
		byKind[m.Kind] = append(byKind[m.Kind], m)
	}
	kinds := make([]models.ReferenceKind, 0, len(byKind))
	for kind := range byKind {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	var paths []string
	for _, kind := range kinds {
		path := filepath.Join(runDir, fmt.Sprintf("missing_%s_%s.xlsx", kind, ts.Format("20060102_150405")))
		if err := writeMissingWorkbook(path, byKind[kind]); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeMissingWorkbook(path string, refs []models.MissingReference) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := writeRow(f, sheet, 1, toCells([]string{"token", "occurrences", "documents", "source_rows"})); err != nil {
		return err
	}

	type entry struct {
		count int
		docs  []string
		rows  []string
		seen  map[string]bool
	}
	byToken := map[string]*entry{}
	var order []string
	for _, m := range refs {
		e := byToken[m.Token]
		if e == nil {
			e = &entry{seen: map[string]bool{}}
			byToken[m.Token] = e
			order = append(order, m.Token)
		}
		e.count++
		if m.DocumentKey != "" && !e.seen[m.DocumentKey] {
			e.seen[m.DocumentKey] = true
			e.docs = append(e.docs, m.DocumentKey)
		}
		e.rows = append(e.rows, fmt.Sprint(m.SourceRow))
	}

	for i, token := range order {
		e := byToken[token]
		cells := []any{token, e.count, strings.Join(e.docs, "; "), strings.Join(e.rows, ", ")}
		if err := writeRow(f, sheet, i+2, cells); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save missing workbook: %w", err)
	}
	return nil
}

func collectRawHeaders(failures []models.FailureRecord) []string {
	seen := map[string]bool{}
	var headers []string
	for _, rec := range failures {
		for h := range rec.Raw {
			if !seen[h] {
				seen[h] = true
				headers = append(headers, h)
			}
		}
	}
	sort.Strings(headers)
	return headers
}

func writeRow(f *excelize.File, sheet string, rowNum int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &cells)
}

func toCells(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
