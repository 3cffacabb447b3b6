package pipeline

import (
	"strings"

	"github.com/alnah/go-mailmerge/internal/docx"
)

// BlockKind classifies a paragraph of the intermediate markup.
type BlockKind int

// Block kinds.
const (
	TextBlock BlockKind = iota
	HeadingBlock
	BoldBlock
	PageBreakBlock
)

func (k BlockKind) String() string {
	switch k {
	case TextBlock:
		return "text"
	case HeadingBlock:
		return "heading"
	case BoldBlock:
		return "bold"
	case PageBreakBlock:
		return "page-break"
	default:
		return "unknown"
	}
}

// Block is one structural element extracted from a Word document.
type Block struct {
	Kind  BlockKind
	Text  string
	Level int // 1-6, headings only
}

// Markup is the intermediate representation between a Word document and a
// fixed-layout rendering: an ordered list of blocks.
type Markup struct {
	Blocks []Block
}

// DefaultHeadingMarkers are the paragraph texts promoted to headings when
// no markers are configured.
var DefaultHeadingMarkers = []string{"Invoice"}

// Extract walks the body paragraphs of doc, tables included, and classifies
// each one. A paragraph whose trimmed text equals one of markers
// (case-insensitive) or whose style is Title/HeadingN becomes a heading; a
// paragraph with a bold run becomes a bold block; anything else with text
// becomes a text block. Paragraphs without text are dropped unless they
// carry a page break. A page break run emits its block where it sits, so a
// paragraph holding text on both sides of a break yields two blocks.
func Extract(doc *docx.Document, markers []string) *Markup {
	if markers == nil {
		markers = DefaultHeadingMarkers
	}

	m := &Markup{}
	for _, p := range doc.Paragraphs() {
		if docx.PageBreakBefore(p) {
			m.Blocks = append(m.Blocks, Block{Kind: PageBreakBlock})
		}
		for i, seg := range docx.SplitAtPageBreaks(p) {
			if i > 0 {
				m.Blocks = append(m.Blocks, Block{Kind: PageBreakBlock})
			}
			if b, ok := classify(seg, markers); ok {
				m.Blocks = append(m.Blocks, b)
			}
		}
	}
	return m
}

func classify(p *docx.Node, markers []string) (Block, bool) {
	text := strings.TrimRight(docx.ParagraphText(p), " \t\n")
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Block{}, false
	}

	for _, marker := range markers {
		if strings.EqualFold(trimmed, strings.TrimSpace(marker)) {
			return Block{Kind: HeadingBlock, Text: trimmed, Level: 1}, true
		}
	}
	if level := headingLevel(docx.StyleID(p)); level > 0 {
		return Block{Kind: HeadingBlock, Text: trimmed, Level: level}, true
	}
	if docx.HasBold(p) {
		return Block{Kind: BoldBlock, Text: trimmed}, true
	}
	return Block{Kind: TextBlock, Text: text}, true
}

// headingLevel maps a paragraph style id to a heading level, 0 when the
// style is not a heading. Localized built-in style ids are recognized.
func headingLevel(style string) int {
	lower := strings.ToLower(style)

	switch lower {
	case "title":
		return 1
	case "subtitle":
		return 2
	}

	for _, prefix := range []string{"heading", "titre", "überschrift"} {
		rest, ok := strings.CutPrefix(lower, prefix)
		if ok && len(rest) == 1 && rest[0] >= '1' && rest[0] <= '6' {
			return int(rest[0] - '0')
		}
	}
	return 0
}

// Count returns the number of blocks of the given kind.
func (m *Markup) Count(kind BlockKind) int {
	n := 0
	for _, b := range m.Blocks {
		if b.Kind == kind {
			n++
		}
	}
	return n
}
