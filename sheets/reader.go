package sheets

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bitbucket.org/mmdatafocus/erp_importer/normalize"
	"github.com/xuri/excelize/v2"
)

// Row is one data row: the workbook row number (header is row 1) plus the
// cells keyed by canonical header.
type Row struct {
	Index int
	Cells map[string]string
}

// Sheet is the flattened input: canonical headers in column order plus all
// data rows. Unrecognized columns ride along; the descriptor decides which
// ones matter.
type Sheet struct {
	Headers []string
	Rows    []Row
}

// ReadWorkbook loads the first worksheet of an .xlsx workbook, or a .csv
// file, into a Sheet. Headers are matched case-insensitively after
// whitespace collapse.
func ReadWorkbook(path string) (*Sheet, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(path)
	case ".xlsx", ".xlsm":
		return readXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported input %q (want .xlsx or .csv)", path)
	}
}

func readXLSX(path string) (*Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheetName, err)
	}
	return fromRecords(rows)
}

func readCSV(path string) (*Sheet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return fromRecords(records)
}

func fromRecords(records [][]string) (*Sheet, error) {
	if len(records) == 0 {
		return nil, errors.New("input is empty")
	}

	headers := make([]string, 0, len(records[0]))
	for _, h := range records[0] {
		headers = append(headers, normalize.CanonicalHeader(h))
	}

	sheet := &Sheet{Headers: headers}
	for i, record := range records[1:] {
		if blank(record) {
			continue
		}
		row := Row{Index: i + 2, Cells: map[string]string{}}
		for col, header := range headers {
			if header == "" {
				continue
			}
			if col < len(record) {
				row.Cells[header] = record[col]
			}
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet, nil
}

func blank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
