// Package tabular loads merge records from the first worksheet of an Excel
// workbook.
//
// Row 1 holds the column headers; every following non-blank row is one
// record. Cell values are read as displayed (number formats applied),
// formulas are not evaluated beyond the value cached in the file.
package tabular

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// DefaultPreviewRows is the number of records returned by Preview when n <= 0.
const DefaultPreviewRows = 5

// Sentinel errors for loading.
var (
	ErrNoWorksheet = errors.New("workbook has no worksheet")
	ErrMalformed   = errors.New("malformed spreadsheet")
	ErrNoRecords   = errors.New("spreadsheet has no data rows")
)

// Record maps a header to the cell value of one row. Missing cells are "".
type Record map[string]string

// Lookup returns the value stored under header.
func (r Record) Lookup(header string) (string, bool) {
	v, ok := r[header]
	return v, ok
}

// Table is the content of a worksheet.
type Table struct {
	Headers []string
	Records []Record
}

// Sample summarizes a worksheet for display after upload.
type Sample struct {
	Headers []string
	Rows    []Record
	Total   int
}

// Load reads every record of the first worksheet of the workbook at path.
func Load(path string) (*Table, error) {
	rows, err := readFirstSheet(path)
	if err != nil {
		return nil, err
	}
	return fromRows(rows)
}

// Preview reads the headers, the first n records and the record count of the
// workbook at path. n <= 0 selects DefaultPreviewRows.
func Preview(path string, n int) (*Sample, error) {
	if n <= 0 {
		n = DefaultPreviewRows
	}
	table, err := Load(path)
	if err != nil {
		return nil, err
	}
	rows := table.Records
	if len(rows) > n {
		rows = rows[:n]
	}
	return &Sample{
		Headers: table.Headers,
		Rows:    rows,
		Total:   len(table.Records),
	}, nil
}

func readFirstSheet(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	defer func() { _ = f.Close() }()

	sheet, err := firstSheet(f.GetSheetList())
	if err != nil {
		return nil, err
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: reading sheet %q: %v", ErrMalformed, sheet, err)
	}
	return rows, nil
}

func firstSheet(names []string) (string, error) {
	if len(names) == 0 {
		return "", ErrNoWorksheet
	}
	return names[0], nil
}

// fromRows turns raw sheet rows into a Table. The header row may be shorter
// than the data rows; extra columns get generated names.
func fromRows(rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet is empty", ErrNoRecords)
	}

	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	if width == 0 {
		return nil, fmt.Errorf("%w: sheet is empty", ErrNoRecords)
	}

	headers := buildHeaders(rows[0], width)

	var records []Record
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		rec := make(Record, width)
		for i, h := range headers {
			if i < len(row) {
				rec[h] = row[i]
			} else {
				rec[h] = ""
			}
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: only a header row was found", ErrNoRecords)
	}

	return &Table{Headers: headers, Records: records}, nil
}

// buildHeaders names blank header cells Column{N} (1-based) and suffixes
// repeated names with .1, .2, ...
func buildHeaders(row []string, width int) []string {
	headers := make([]string, width)
	used := make(map[string]bool, width)
	for i := range headers {
		name := ""
		if i < len(row) {
			name = row[i]
		}
		if strings.TrimSpace(name) == "" {
			name = "Column" + strconv.Itoa(i+1)
		}
		if used[name] {
			base := name
			for k := 1; used[name]; k++ {
				name = base + "." + strconv.Itoa(k)
			}
		}
		used[name] = true
		headers[i] = name
	}
	return headers
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
