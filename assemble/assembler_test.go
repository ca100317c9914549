package assemble

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/erp_importer/models"
	"bitbucket.org/mmdatafocus/erp_importer/resolver"
	"bitbucket.org/mmdatafocus/erp_importer/sheets"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// fakeCaller answers resolver searches from a scripted table keyed by
// "model/field=value".
type fakeCaller struct {
	answers map[string]int64
}

func (f *fakeCaller) Call(_ context.Context, _ int, model, method string, args []any, kw map[string]any) (any, error) {
	if method != "search" {
		return []any{}, nil
	}
	domain := args[0].([]any)
	triple := domain[0].([]any)
	key := fmt.Sprintf("%s/%v%v%v", model, triple[0], triple[1], triple[2])
	if id, ok := f.answers[key]; ok {
		return []any{id}, nil
	}
	return []any{}, nil
}

func testDescriptor() *models.EntityDescriptor {
	return &models.EntityDescriptor{
		Name:     "test-order",
		ERPModel: "purchase.order",

		NaturalKeyField: "ref_name",
		NaturalKeyERP:   "name",

		Mode:      models.UpsertModeReplaceLines,
		LineModel: "purchase.order.line",
		LineField: "order_line",

		HeaderFields: []models.FieldSpec{
			{Name: "ref_name", ERPField: "name", Type: models.FieldString, Required: true},
			{Name: "partner", ERPField: "partner_id", Type: models.FieldReference, Ref: models.RefPartner, Required: true},
			{Name: "notes", ERPField: "notes", Type: models.FieldString},
		},
		LineFields: []models.FieldSpec{
			{Name: "product", ERPField: "product_id", Type: models.FieldReference, Ref: models.RefProduct, Required: true},
			{Name: "product_qty", ERPField: "product_qty", Type: models.FieldFloat, Required: true},
			{Name: "price_unit", ERPField: "price_unit", Type: models.FieldFloat, Required: true},
		},

		DuplicatePolicy:    models.DuplicateSum,
		DuplicateKeyFields: []string{"product"},
	}
}

func testAssembler(desc *models.EntityDescriptor, answers map[string]int64) *Assembler {
	log := logrus.New()
	log.SetOutput(&strings.Builder{})
	return New(desc, resolver.New(&fakeCaller{answers: answers}, log), log)
}

func sheetOf(headers []string, rows ...[]string) *sheets.Sheet {
	records := append([][]string{headers}, rows...)
	sheet, err := buildSheet(records)
	if err != nil {
		panic(err)
	}
	return sheet
}

func buildSheet(records [][]string) (*sheets.Sheet, error) {
	sheet := &sheets.Sheet{}
	for _, h := range records[0] {
		sheet.Headers = append(sheet.Headers, h)
	}
	for i, record := range records[1:] {
		row := sheets.Row{Index: i + 2, Cells: map[string]string{}}
		for col, header := range sheet.Headers {
			if col < len(record) {
				row.Cells[header] = record[col]
			}
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet, nil
}

var stdAnswers = map[string]int64{
	"res.partner/x_old_code=V-001":          10,
	"product.product/default_code=PROD-A":   100,
	"product.product/default_code=PROD-B":   101,
	"product.product/default_code=PROD-C":   102,
}

func TestGroupingByNaturalKey(t *testing.T) {
	sheet := sheetOf(
		[]string{"ref_name", "partner", "product", "product_qty", "price_unit"},
		[]string{"PO-1", "V-001", "PROD-A", "2", "10"},
		[]string{"PO-1", "V-001", "PROD-B", "1", "20"},
		[]string{"PO-2", "V-001", "PROD-C", "5", "30"},
	)
	res, err := testAssembler(testDescriptor(), stdAnswers).Assemble(context.Background(), sheet)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(res.Failures) != 0 {
		t.Fatalf("unexpected failures: %+v", res.Failures)
	}
	if len(res.Documents) != 2 {
		t.Fatalf("want 2 documents, got %d", len(res.Documents))
	}
	po1 := res.Documents[0]
	if po1.Key != "PO-1" || len(po1.Lines) != 2 {
		t.Fatalf("PO-1 = %+v", po1)
	}
	if po1.Header.ID("partner").ID != 10 {
		t.Fatalf("partner not resolved: %+v", po1.Header.Values)
	}
	if po1.Lines[0].ID("product").ID != 100 || po1.Lines[1].ID("product").ID != 101 {
		t.Fatal("line products not resolved in order")
	}
	if res.Documents[1].Key != "PO-2" {
		t.Fatalf("document order not preserved: %v", res.Documents[1].Key)
	}
}

func TestFirstRowHeaderIsAuthoritative(t *testing.T) {
	sheet := sheetOf(
		[]string{"ref_name", "partner", "notes", "product", "product_qty", "price_unit"},
		[]string{"PO-1", "V-001", "first", "PROD-A", "1", "10"},
		[]string{"PO-1", "V-001", "second", "PROD-B", "1", "20"},
	)
	res, err := testAssembler(testDescriptor(), stdAnswers).Assemble(context.Background(), sheet)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(res.Documents) != 1 {
		t.Fatalf("want 1 document, got %d", len(res.Documents))
	}
	if notes := res.Documents[0].Header.String("notes"); notes != "first" {
		t.Fatalf("later rows must not override the header, got %q", notes)
	}
}

func TestUnresolvedLineDropsLineKeepsDocument(t *testing.T) {
	sheet := sheetOf(
		[]string{"ref_name", "partner", "product", "product_qty", "price_unit"},
		[]string{"PO-1", "V-001", "PROD-A", "1", "10"},
		[]string{"PO-1", "V-001", "GHOST", "1", "20"},
	)
	res, err := testAssembler(testDescriptor(), stdAnswers).Assemble(context.Background(), sheet)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(res.Documents) != 1 || len(res.Documents[0].Lines) != 1 {
		t.Fatalf("document must survive with the resolvable line: %+v", res.Documents)
	}
	if len(res.Failures) != 1 || res.Failures[0].SourceRow != 3 {
		t.Fatalf("dropped line must fail with its row: %+v", res.Failures)
	}
	if res.Failures[0].Category != models.CategoryReference {
		t.Fatalf("category = %s", res.Failures[0].Category)
	}
	if len(res.Missing) != 1 || res.Missing[0].Token != "GHOST" || res.Missing[0].Kind != models.RefProduct {
		t.Fatalf("missing = %+v", res.Missing)
	}
}

func TestUnresolvedHeaderDropsDocument(t *testing.T) {
	sheet := sheetOf(
		[]string{"ref_name", "partner", "product", "product_qty", "price_unit"},
		[]string{"PO-1", "NOBODY", "PROD-A", "1", "10"},
		[]string{"PO-1", "NOBODY", "PROD-B", "1", "20"},
	)
	res, err := testAssembler(testDescriptor(), stdAnswers).Assemble(context.Background(), sheet)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(res.Documents) != 0 {
		t.Fatalf("document must be dropped: %+v", res.Documents)
	}
	// one failure for the header row, one for the follower row
	if len(res.Failures) != 2 {
		t.Fatalf("failures = %+v", res.Failures)
	}
}

func TestDuplicateSumMergesWeightedPrice(t *testing.T) {
	sheet := sheetOf(
		[]string{"ref_name", "partner", "product", "product_qty", "price_unit"},
		[]string{"PO-1", "V-001", "PROD-A", "2", "10"},
		[]string{"PO-1", "V-001", "PROD-A", "3", "20"},
	)
	res, err := testAssembler(testDescriptor(), stdAnswers).Assemble(context.Background(), sheet)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(res.Documents) != 1 || len(res.Documents[0].Lines) != 1 {
		t.Fatalf("duplicates must merge: %+v", res.Documents)
	}
	line := res.Documents[0].Lines[0]
	qty := line.Values["product_qty"].(decimal.Decimal)
	price := line.Values["price_unit"].(decimal.Decimal)
	if !qty.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("qty = %s", qty)
	}
	// (2*10 + 3*20) / 5 = 16
	if !price.Equal(decimal.NewFromInt(16)) {
		t.Fatalf("price = %s", price)
	}
	if rows := res.Documents[0].SourceRows; len(rows) != 2 {
		t.Fatalf("both source rows must stay attributed: %v", rows)
	}
}

func TestDuplicateErrorPolicy(t *testing.T) {
	desc := testDescriptor()
	desc.DuplicatePolicy = models.DuplicateError
	sheet := sheetOf(
		[]string{"ref_name", "partner", "product", "product_qty", "price_unit"},
		[]string{"PO-1", "V-001", "PROD-A", "2", "10"},
		[]string{"PO-1", "V-001", "PROD-A", "3", "20"},
	)
	res, err := testAssembler(desc, stdAnswers).Assemble(context.Background(), sheet)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(res.Documents) != 1 || len(res.Documents[0].Lines) != 1 {
		t.Fatalf("first line survives: %+v", res.Documents)
	}
	if len(res.Failures) != 1 || res.Failures[0].SourceRow != 3 {
		t.Fatalf("duplicate must fail its own row: %+v", res.Failures)
	}
}

func TestMissingNaturalKeyFailsRow(t *testing.T) {
	sheet := sheetOf(
		[]string{"ref_name", "partner", "product", "product_qty", "price_unit"},
		[]string{"", "V-001", "PROD-A", "1", "10"},
	)
	res, err := testAssembler(testDescriptor(), stdAnswers).Assemble(context.Background(), sheet)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(res.Documents) != 0 || len(res.Failures) != 1 {
		t.Fatalf("docs=%d failures=%+v", len(res.Documents), res.Failures)
	}
}

func TestSingleModeOneDocumentPerRow(t *testing.T) {
	desc := &models.EntityDescriptor{
		Name:            "test-partner",
		ERPModel:        "res.partner",
		NaturalKeyField: "partner_code",
		NaturalKeyERP:   "ref",
		Mode:            models.UpsertModeSingle,
		HeaderFields: []models.FieldSpec{
			{Name: "partner_code", ERPField: "ref", Type: models.FieldString, Required: true},
			{Name: "name", ERPField: "name", Type: models.FieldString, Required: true},
		},
	}
	sheet := sheetOf(
		[]string{"partner_code", "name"},
		[]string{"C-1", "Alpha"},
		[]string{"C-2", "Beta"},
	)
	res, err := testAssembler(desc, nil).Assemble(context.Background(), sheet)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(res.Documents) != 2 {
		t.Fatalf("want 2 documents, got %d", len(res.Documents))
	}
	if res.Documents[0].Key != "C-1" || res.Documents[1].Key != "C-2" {
		t.Fatalf("keys = %v, %v", res.Documents[0].Key, res.Documents[1].Key)
	}
	if len(res.Documents[0].Lines) != 0 {
		t.Fatal("single mode documents carry no lines")
	}
}
