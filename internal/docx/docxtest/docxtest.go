// Package docxtest builds small .docx packages for tests.
package docxtest

import (
	"archive/zip"
	"bytes"
	"html"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Run is one formatted text run.
type Run struct {
	Text      string
	Bold      bool
	PageBreak bool // the run holds <w:br w:type="page"/> instead of text
}

// Para describes a paragraph of a fixture document.
type Para struct {
	Runs        []Run
	Style       string // paragraph style id, e.g. "Heading1"
	PageBreak   bool   // trailing <w:br w:type="page"/>
	BreakBefore bool   // <w:pageBreakBefore/> paragraph property
}

// P is shorthand for a paragraph made of plain runs.
func P(texts ...string) Para {
	runs := make([]Run, len(texts))
	for i, s := range texts {
		runs[i] = Run{Text: s}
	}
	return Para{Runs: runs}
}

// B is shorthand for a paragraph made of a single bold run.
func B(text string) Para {
	return Para{Runs: []Run{{Text: text, Bold: true}}}
}

// Break is a paragraph holding only a page break.
func Break() Para {
	return Para{PageBreak: true}
}

const contentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`

const rootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/></Relationships>`

// DocumentXML renders the body of a fixture as word/document.xml.
func DocumentXML(paras ...Para) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	sb.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paras {
		sb.WriteString("<w:p>")
		if p.Style != "" || p.BreakBefore {
			sb.WriteString("<w:pPr>")
			if p.Style != "" {
				sb.WriteString(`<w:pStyle w:val="` + html.EscapeString(p.Style) + `"/>`)
			}
			if p.BreakBefore {
				sb.WriteString("<w:pageBreakBefore/>")
			}
			sb.WriteString("</w:pPr>")
		}
		for _, r := range p.Runs {
			sb.WriteString("<w:r>")
			if r.Bold {
				sb.WriteString("<w:rPr><w:b/></w:rPr>")
			}
			if r.PageBreak {
				sb.WriteString(`<w:br w:type="page"/>`)
			} else {
				sb.WriteString(`<w:t xml:space="preserve">` + html.EscapeString(r.Text) + "</w:t>")
			}
			sb.WriteString("</w:r>")
		}
		if p.PageBreak {
			sb.WriteString(`<w:r><w:br w:type="page"/></w:r>`)
		}
		sb.WriteString("</w:p>")
	}
	sb.WriteString(`<w:sectPr><w:pgSz w:w="11906" w:h="16838"/></w:sectPr></w:body></w:document>`)
	return sb.String()
}

// Bytes builds a .docx package in memory.
func Bytes(t testing.TB, paras ...Para) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := []struct{ name, body string }{
		{"[Content_Types].xml", contentTypes},
		{"_rels/.rels", rootRels},
		{"word/document.xml", DocumentXML(paras...)},
	}
	for _, f := range files {
		w, err := zw.Create(f.name)
		if err != nil {
			t.Fatalf("creating %s: %v", f.name, err)
		}
		if _, err := w.Write([]byte(f.body)); err != nil {
			t.Fatalf("writing %s: %v", f.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing archive: %v", err)
	}
	return buf.Bytes()
}

// Write builds a .docx package named name inside dir and returns its path.
func Write(t testing.TB, dir, name string, paras ...Para) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, Bytes(t, paras...), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}
