package mailmerge

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alnah/go-mailmerge/internal/docx"
	"github.com/alnah/go-mailmerge/internal/pipeline"
)

// ---------------------------------------------------------------------------
// Mock renderer
// ---------------------------------------------------------------------------

// fakePDF is enough for tests that stub PDF validation.
const fakePDF = "%PDF-1.4\n%fake\n"

// mockRenderer writes fakePDF or fails with err. A positive block waits for
// the context to end before returning.
type mockRenderer struct {
	name  string
	err   error
	block bool

	mu     sync.Mutex
	calls  atomic.Int32
	markup []*pipeline.Markup
	pages  []*PageSettings
}

func (m *mockRenderer) Name() string { return m.name }

func (m *mockRenderer) Render(ctx context.Context, mk *pipeline.Markup, page *PageSettings, outputPath string) (string, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.markup = append(m.markup, mk)
	m.pages = append(m.pages, page)
	m.mu.Unlock()

	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if m.err != nil {
		return "", m.err
	}
	if err := os.WriteFile(outputPath, []byte(fakePDF), 0o644); err != nil {
		return "", err
	}
	return outputPath, nil
}

// acceptAll replaces PDF validation in tests.
func acceptAll(string) (int, error) { return 1, nil }

// ---------------------------------------------------------------------------
// Document helpers
// ---------------------------------------------------------------------------

func openDoc(t *testing.T, path string) *docx.Document {
	t.Helper()

	doc, err := docx.Open(path)
	if err != nil {
		t.Fatalf("docx.Open(%s) error = %v", path, err)
	}
	return doc
}

// texts returns the text of every non-empty paragraph.
func texts(doc *docx.Document) []string {
	var out []string
	for _, p := range doc.Paragraphs() {
		if s := docx.ParagraphText(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func countPageBreaks(doc *docx.Document) int {
	n := 0
	for _, p := range doc.Paragraphs() {
		if docx.HasPageBreak(p) {
			n++
		}
	}
	return n
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
