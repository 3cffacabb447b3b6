package fileutil

// Notes:
// - WriteTempFile error paths for CreateTemp are exercised with a missing
//   directory instead of permission tricks so tests stay portable

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// TestValidateExtension
// ---------------------------------------------------------------------------

func TestValidateExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		extension string
		wantErr   error
	}{
		{name: "html", extension: "html"},
		{name: "empty", extension: "", wantErr: ErrExtensionEmpty},
		{name: "slash", extension: "../x", wantErr: ErrExtensionPathTraversal},
		{name: "backslash", extension: `a\b`, wantErr: ErrExtensionPathTraversal},
		{name: "null byte", extension: "md\x00", wantErr: ErrExtensionPathTraversal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if err := ValidateExtension(tt.extension); !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateExtension(%q) = %v, want %v", tt.extension, err, tt.wantErr)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestWriteTempFile
// ---------------------------------------------------------------------------

func TestWriteTempFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path, cleanup, err := WriteTempFile(dir, "<p>hi</p>", "html")
	if err != nil {
		t.Fatalf("WriteTempFile() error = %v", err)
	}

	if filepath.Dir(path) != dir {
		t.Errorf("file created in %q, want %q", filepath.Dir(path), dir)
	}
	if !strings.HasSuffix(path, ".html") {
		t.Errorf("path %q lacks .html extension", path)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading temp file: %v", err)
	}
	if string(got) != "<p>hi</p>" {
		t.Errorf("content = %q", got)
	}

	cleanup()
	if FileExists(path) {
		t.Error("cleanup did not remove the file")
	}
}

func TestWriteTempFile_Errors(t *testing.T) {
	t.Parallel()

	if _, _, err := WriteTempFile(t.TempDir(), "x", ""); !errors.Is(err, ErrExtensionEmpty) {
		t.Errorf("empty extension error = %v, want ErrExtensionEmpty", err)
	}

	missing := filepath.Join(t.TempDir(), "missing")
	if _, _, err := WriteTempFile(missing, "x", "html"); err == nil {
		t.Error("WriteTempFile() in missing dir error = nil, want error")
	}
}

// ---------------------------------------------------------------------------
// TestFileExists / TestIsFilePath / TestHasExtension
// ---------------------------------------------------------------------------

func TestFileExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	if !FileExists(file) {
		t.Error("FileExists(file) = false, want true")
	}
	if FileExists(dir) {
		t.Error("FileExists(dir) = true, want false")
	}
	if FileExists(filepath.Join(dir, "nope")) {
		t.Error("FileExists(missing) = true, want false")
	}
}

func TestIsFilePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  bool
	}{
		{"default", false},
		{"my-style", false},
		{"./letter.css", true},
		{"/abs/path.css", true},
		{`C:\win\path.css`, true},
	}

	for _, tt := range tests {
		if got := IsFilePath(tt.input); got != tt.want {
			t.Errorf("IsFilePath(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestHasExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		exts []string
		want bool
	}{
		{"letter.docx", []string{".docx"}, true},
		{"LETTER.DOCX", []string{".docx"}, true},
		{"data.xlsx", []string{".xls", ".xlsx"}, true},
		{"data.csv", []string{".xlsx"}, false},
		{"docx", []string{".docx"}, false},
		{"archive.docx.zip", []string{".docx"}, false},
	}

	for _, tt := range tests {
		if got := HasExtension(tt.name, tt.exts...); got != tt.want {
			t.Errorf("HasExtension(%q, %v) = %v, want %v", tt.name, tt.exts, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// TestSanitizeFilename / TestSecureName
// ---------------------------------------------------------------------------

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"John Doe", "John Doe"},
		{`a<b>c:d"e/f\g|h?i*j`, "a_b_c_d_e_f_g_h_i_j"},
		{"tab\there", "tab_here"},
		{"Zoë & Co.", "Zoë & Co."},
		{"", ""},
	}

	for _, tt := range tests {
		if got := SanitizeFilename(tt.input); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSanitizeFilename_OnlyReservedChanged(t *testing.T) {
	t.Parallel()

	in := `Q1: "Acme" <report>`
	got := SanitizeFilename(in)
	if len([]rune(got)) != len([]rune(in)) {
		t.Fatalf("length changed: %q -> %q", in, got)
	}
	for i, r := range []rune(in) {
		g := []rune(got)[i]
		if strings.ContainsRune(reservedChars, r) {
			if g != '_' {
				t.Errorf("position %d: %q not replaced", i, r)
			}
			continue
		}
		if g != r {
			t.Errorf("position %d: %q changed to %q", i, r, g)
		}
	}
}

func TestSecureName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"letter.docx", "letter.docx"},
		{"My Letter (v2).docx", "My_Letter_(v2).docx"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\ann\data.xlsx`, "data.xlsx"},
		{".hidden.docx", "hidden.docx"},
		{"...", ""},
		{"", ""},
		{strings.Repeat("a", 200) + ".docx", strings.Repeat("a", MaxNameLength) + ".docx"},
	}

	for _, tt := range tests {
		if got := SecureName(tt.input); got != tt.want {
			t.Errorf("SecureName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
