// Package tabulartest writes small .xlsx workbooks for tests.
package tabulartest

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// Write saves rows to the first sheet of a new workbook named name inside
// dir and returns its path. Row 0 is the header row.
func Write(t testing.TB, dir, name string, rows ...[]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("writing row %d: %v", i+1, err)
		}
	}

	path := filepath.Join(dir, name)
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("saving workbook: %v", err)
	}
	return path
}

// Row is shorthand for a row of string cells.
func Row(cells ...string) []any {
	out := make([]any, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}
