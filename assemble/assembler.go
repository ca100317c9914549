package assemble

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/erp_importer/models"
	"bitbucket.org/mmdatafocus/erp_importer/normalize"
	"bitbucket.org/mmdatafocus/erp_importer/resolver"
	"bitbucket.org/mmdatafocus/erp_importer/sheets"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Assembler groups normalized rows into documents keyed by the natural
// identifier, resolving references as it goes so unresolvable rows fail
// fast with an attributed record instead of failing the whole document at
// upsert time.
type Assembler struct {
	desc *models.EntityDescriptor
	res  *resolver.Resolver
	log  *logrus.Logger
	now  time.Time

	// resolution runs before the worker pool spins up
	worker int
}

// Result carries everything a run needs downstream: the surviving
// documents, per-row failures, and the unresolved references for the
// missing-reference workbooks.
type Result struct {
	Documents []models.Document
	Failures  []models.FailureRecord
	Missing   []models.MissingReference
	RowCount  int
}

func New(desc *models.EntityDescriptor, res *resolver.Resolver, log *logrus.Logger) *Assembler {
	return &Assembler{desc: desc, res: res, log: log, now: time.Now()}
}

// Assemble consumes the sheet. Errors are reserved for transport failures
// during resolution; bad rows become FailureRecords in the result.
func (a *Assembler) Assemble(ctx context.Context, sheet *sheets.Sheet) (Result, error) {
	out := Result{RowCount: len(sheet.Rows)}

	if !a.desc.OwnsLines() {
		return a.assembleSingles(ctx, sheet, out)
	}
	return a.assembleDocuments(ctx, sheet, out)
}

// assembleSingles emits one document per row (partners, products,
// employees).
func (a *Assembler) assembleSingles(ctx context.Context, sheet *sheets.Sheet, out Result) (Result, error) {
	for _, raw := range sheet.Rows {
		row, ok := a.normalizeRow(raw, a.desc.HeaderFields, &out)
		if !ok {
			continue
		}
		key := row.String(a.desc.NaturalKeyField)
		ok, err := a.resolveRefs(ctx, &row, a.desc.HeaderFields, key, &out)
		if err != nil {
			return out, err
		}
		if !ok {
			continue
		}
		out.Documents = append(out.Documents, models.Document{
			Key:        key,
			Header:     row,
			SourceRows: []int{row.SourceRow},
		})
	}
	return out, nil
}

func (a *Assembler) assembleDocuments(ctx context.Context, sheet *sheets.Sheet, out Result) (Result, error) {
	type docBuilder struct {
		doc     models.Document
		dropped bool
	}
	var order []string
	builders := map[string]*docBuilder{}

	allFields := append(append([]models.FieldSpec{}, a.desc.HeaderFields...), a.desc.LineFields...)

	for _, raw := range sheet.Rows {
		row, ok := a.normalizeRow(raw, allFields, &out)
		if !ok {
			continue
		}
		key := row.String(a.desc.NaturalKeyField)
		if key == "" {
			out.Failures = append(out.Failures, a.failure(key, row, models.CategoryNormalization,
				fmt.Sprintf("natural key %s missing", a.desc.NaturalKeyField)))
			continue
		}

		b := builders[key]
		if b == nil {
			// First occurrence is authoritative for header fields; later
			// values for them are ignored.
			header := row
			ok, err := a.resolveRefs(ctx, &header, a.desc.HeaderFields, key, &out)
			if err != nil {
				return out, err
			}
			b = &docBuilder{doc: models.Document{Key: key, Header: header}}
			if !ok {
				b.dropped = true
			}
			builders[key] = b
			order = append(order, key)
			if b.dropped {
				continue
			}
		}
		if b.dropped {
			out.Failures = append(out.Failures, a.failure(key, row, models.CategoryReference,
				"document dropped: header reference unresolved"))
			continue
		}

		line := row
		ok, err := a.resolveRefs(ctx, &line, a.desc.LineFields, key, &out)
		if err != nil {
			return out, err
		}
		if !ok {
			// Line dropped, document retained.
			continue
		}
		b.doc.Lines = append(b.doc.Lines, line)
		b.doc.SourceRows = append(b.doc.SourceRows, line.SourceRow)
	}

	for _, key := range order {
		b := builders[key]
		if b.dropped {
			continue
		}
		if len(b.doc.Lines) == 0 {
			out.Failures = append(out.Failures, models.FailureRecord{
				Timestamp:   time.Now(),
				DocumentKey: key,
				SourceRow:   b.doc.Header.SourceRow,
				Category:    models.CategoryReference,
				Message:     "no resolvable lines",
				Raw:         b.doc.Header.Raw,
			})
			continue
		}
		doc := b.doc
		if a.desc.DuplicatePolicy != "" {
			doc = a.mergeDuplicates(doc, &out)
		}
		out.Documents = append(out.Documents, doc)
	}
	return out, nil
}

func (a *Assembler) normalizeRow(raw sheets.Row, fields []models.FieldSpec, out *Result) (models.NormalizedRow, bool) {
	row, warnings, err := normalize.Row(fields, raw.Cells, raw.Index, a.now)
	for _, w := range warnings {
		a.log.WithFields(logrus.Fields{"row": raw.Index}).Warn(w)
	}
	if err != nil {
		out.Failures = append(out.Failures, models.FailureRecord{
			Timestamp: time.Now(),
			SourceRow: raw.Index,
			Category:  models.CategoryNormalization,
			Message:   err.Error(),
			Raw:       raw.Cells,
		})
		return row, false
	}
	return row, true
}

// resolveRefs resolves every reference field present on the row. A required
// unresolved reference fails the row; optional ones are dropped silently.
func (a *Assembler) resolveRefs(ctx context.Context, row *models.NormalizedRow, fields []models.FieldSpec, key string, out *Result) (bool, error) {
	for _, field := range fields {
		if field.Type != models.FieldReference {
			continue
		}
		token, _ := row.Values[field.Name].(string)
		if token == "" {
			if field.Required {
				out.Failures = append(out.Failures, a.failure(key, *row, models.CategoryReference,
					fmt.Sprintf("required reference %s missing", field.Name)))
				return false, nil
			}
			continue
		}

		ref := models.SymbolicReference{Kind: field.Ref, Tokens: []string{token}}
		if field.Ref == models.RefCountryState {
			if country := row.String("country"); country != "" {
				ref.Disambiguators = map[string]string{"country": country}
			}
		}

		id, found, err := a.res.Resolve(ctx, a.worker, ref)
		if err != nil {
			return false, err
		}
		if !found {
			out.Missing = append(out.Missing, models.MissingReference{
				Kind:        field.Ref,
				Token:       token,
				DocumentKey: key,
				SourceRow:   row.SourceRow,
			})
			if field.Required {
				out.Failures = append(out.Failures, a.failure(key, *row, models.CategoryReference,
					fmt.Sprintf("%s %q not found", field.Ref, token)))
				return false, nil
			}
			delete(row.Values, field.Name)
			continue
		}
		row.Values[field.Name] = id
	}
	return true, nil
}

// mergeDuplicates applies the descriptor's duplicate policy to lines
// sharing the same key fields. Sum merges quantities and takes a
// quantity-weighted average unit price.
func (a *Assembler) mergeDuplicates(doc models.Document, out *Result) models.Document {
	qtyField, priceField := a.numericLineFields()

	seen := map[string]int{}
	var merged []models.NormalizedRow
	var keptRows []int

	for _, line := range doc.Lines {
		key := a.duplicateKey(line)
		at, dup := seen[key]
		if !dup || key == "" {
			seen[key] = len(merged)
			merged = append(merged, line)
			keptRows = append(keptRows, line.SourceRow)
			continue
		}

		switch a.desc.DuplicatePolicy {
		case models.DuplicateSum:
			first := merged[at]
			q1, _ := first.Values[qtyField].(decimal.Decimal)
			q2, _ := line.Values[qtyField].(decimal.Decimal)
			p1, _ := first.Values[priceField].(decimal.Decimal)
			p2, _ := line.Values[priceField].(decimal.Decimal)
			total := q1.Add(q2)
			if !total.IsZero() {
				first.Values[priceField] = p1.Mul(q1).Add(p2.Mul(q2)).Div(total)
			}
			first.Values[qtyField] = total
			merged[at] = first
			keptRows = append(keptRows, line.SourceRow)
		case models.DuplicateFirstWins:
			keptRows = append(keptRows, line.SourceRow)
		case models.DuplicateError:
			out.Failures = append(out.Failures, a.failure(doc.Key, line, models.CategoryNormalization,
				"duplicate line for "+key))
		}
	}

	doc.Lines = merged
	doc.SourceRows = keptRows
	return doc
}

func (a *Assembler) duplicateKey(line models.NormalizedRow) string {
	key := ""
	for _, f := range a.desc.DuplicateKeyFields {
		switch v := line.Values[f].(type) {
		case models.Identifier:
			key += fmt.Sprintf("%s:%d|", v.Model, v.ID)
		case nil:
			key += "|"
		default:
			key += fmt.Sprintf("%v|", v)
		}
	}
	return key
}

// numericLineFields picks the quantity and unit-price fields used by Sum
// merging: the first float line fields, conventionally product_qty and
// price_unit.
func (a *Assembler) numericLineFields() (string, string) {
	qty, price := "product_qty", "price_unit"
	for _, f := range a.desc.LineFields {
		if f.Name == "quantity" {
			qty = "quantity"
		}
		if f.Name == "price" {
			price = "price"
		}
	}
	return qty, price
}

func (a *Assembler) failure(key string, row models.NormalizedRow, cat models.ErrorCategory, msg string) models.FailureRecord {
	return models.FailureRecord{
		Timestamp:   time.Now(),
		DocumentKey: key,
		SourceRow:   row.SourceRow,
		Category:    cat,
		Message:     msg,
		Raw:         row.Raw,
	}
}
