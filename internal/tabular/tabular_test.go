package tabular

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/alnah/go-mailmerge/internal/tabular/tabulartest"
)

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := tabulartest.Write(t, dir, "people.xlsx",
		tabulartest.Row("first_name", "last_name", "city"),
		tabulartest.Row("John", "Doe", "Paris"),
		[]any{"Jane", "Roe", 42},
	)

	table, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := &Table{
		Headers: []string{"first_name", "last_name", "city"},
		Records: []Record{
			{"first_name": "John", "last_name": "Doe", "city": "Paris"},
			{"first_name": "Jane", "last_name": "Roe", "city": "42"},
		},
	}
	if diff := cmp.Diff(want, table); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	notXLSX := filepath.Join(dir, "fake.xlsx")
	if err := os.WriteFile(notXLSX, []byte("name,city\nAnn,Oslo\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{
			name:    "missing file",
			path:    filepath.Join(dir, "nope.xlsx"),
			wantErr: ErrMalformed,
		},
		{
			name:    "not a workbook",
			path:    notXLSX,
			wantErr: ErrMalformed,
		},
		{
			name:    "empty sheet",
			path:    tabulartest.Write(t, dir, "empty.xlsx"),
			wantErr: ErrNoRecords,
		},
		{
			name:    "header only",
			path:    tabulartest.Write(t, dir, "header.xlsx", tabulartest.Row("a", "b")),
			wantErr: ErrNoRecords,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Load(tt.path)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Load() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPreview(t *testing.T) {
	t.Parallel()

	rows := [][]any{tabulartest.Row("n")}
	for _, v := range []string{"1", "2", "3", "4", "5", "6", "7"} {
		rows = append(rows, tabulartest.Row(v))
	}
	path := tabulartest.Write(t, t.TempDir(), "seven.xlsx", rows...)

	tests := []struct {
		name     string
		n        int
		wantRows int
	}{
		{name: "default", n: 0, wantRows: DefaultPreviewRows},
		{name: "three", n: 3, wantRows: 3},
		{name: "more than available", n: 20, wantRows: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Preview(path, tt.n)
			if err != nil {
				t.Fatalf("Preview() error = %v", err)
			}
			if len(got.Rows) != tt.wantRows {
				t.Errorf("len(Rows) = %d, want %d", len(got.Rows), tt.wantRows)
			}
			if got.Total != 7 {
				t.Errorf("Total = %d, want 7", got.Total)
			}
			if got.Rows[0]["n"] != "1" {
				t.Errorf("first row = %v, want n=1", got.Rows[0])
			}
		})
	}
}

func TestFromRows(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rows [][]string
		want *Table
	}{
		{
			name: "blank header cell",
			rows: [][]string{{"a", "", "c"}, {"1", "2", "3"}},
			want: &Table{
				Headers: []string{"a", "Column2", "c"},
				Records: []Record{{"a": "1", "Column2": "2", "c": "3"}},
			},
		},
		{
			name: "data wider than header",
			rows: [][]string{{"a"}, {"1", "2"}},
			want: &Table{
				Headers: []string{"a", "Column2"},
				Records: []Record{{"a": "1", "Column2": "2"}},
			},
		},
		{
			name: "short rows padded",
			rows: [][]string{{"a", "b", "c"}, {"1"}},
			want: &Table{
				Headers: []string{"a", "b", "c"},
				Records: []Record{{"a": "1", "b": "", "c": ""}},
			},
		},
		{
			name: "blank rows skipped",
			rows: [][]string{{"a"}, {"1"}, {}, {"  "}, {"2"}},
			want: &Table{
				Headers: []string{"a"},
				Records: []Record{{"a": "1"}, {"a": "2"}},
			},
		},
		{
			name: "duplicate headers",
			rows: [][]string{{"x", "x", "x.1", "x"}, {"1", "2", "3", "4"}},
			want: &Table{
				Headers: []string{"x", "x.1", "x.1.1", "x.2"},
				Records: []Record{{"x": "1", "x.1": "2", "x.1.1": "3", "x.2": "4"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := fromRows(tt.rows)
			if err != nil {
				t.Fatalf("fromRows() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("fromRows() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFromRows_NoRecords(t *testing.T) {
	t.Parallel()

	for _, rows := range [][][]string{nil, {{}}, {{"a"}}, {{"a"}, {""}}} {
		if _, err := fromRows(rows); !errors.Is(err, ErrNoRecords) {
			t.Errorf("fromRows(%q) error = %v, want ErrNoRecords", rows, err)
		}
	}
}

func TestFirstSheet(t *testing.T) {
	t.Parallel()

	if _, err := firstSheet(nil); !errors.Is(err, ErrNoWorksheet) {
		t.Errorf("firstSheet(nil) error = %v, want ErrNoWorksheet", err)
	}
	got, err := firstSheet([]string{"Data", "Other"})
	if err != nil || got != "Data" {
		t.Errorf("firstSheet() = (%q, %v), want (Data, nil)", got, err)
	}
}

func TestRecordLookup(t *testing.T) {
	t.Parallel()

	r := Record{"name": ""}
	if v, ok := r.Lookup("name"); !ok || v != "" {
		t.Errorf("Lookup(name) = (%q, %v), want (\"\", true)", v, ok)
	}
	if _, ok := r.Lookup("Name"); ok {
		t.Error("Lookup(Name) found a value, want case-sensitive miss")
	}
}
