package pipeline

import (
	"regexp"
	"strings"
)

// Dialect selects the Markdown flavor produced by Markup.Markdown.
type Dialect int

const (
	// CommonMark output is meant for goldmark. Page breaks become a
	// placeholder paragraph that ReplacePageBreaks turns into HTML after
	// conversion.
	CommonMark Dialect = iota

	// Pandoc output uses raw LaTeX and HTML blocks for page breaks so both
	// LaTeX and HTML based PDF engines honor them.
	Pandoc
)

// PageBreakPlaceholder uses a Unicode Private Use Area character. It passes
// through goldmark and sanitization unchanged (no WithUnsafe needed).
const PageBreakPlaceholder = "\uE000" // U+E000: Private Use Area

const pandocPageBreak = "```{=latex}\n\\newpage\n```\n\n" +
	"```{=html}\n<div style=\"page-break-after: always;\"></div>\n```"

// Precompiled regex patterns.
var (
	// Line ending normalization
	crlfOrCR = regexp.MustCompile(`\r\n?`)

	// Leading blanks would turn a line into an indented code block.
	leadingBlanks = regexp.MustCompile(`(?m)^[ \t]+`)
)

// Markdown serializes the markup in the given dialect. Block text is escaped
// so document content can never be read as Markdown syntax.
func (m *Markup) Markdown(d Dialect) string {
	parts := make([]string, 0, len(m.Blocks))
	for _, b := range m.Blocks {
		switch b.Kind {
		case PageBreakBlock:
			if d == Pandoc {
				parts = append(parts, pandocPageBreak)
			} else {
				parts = append(parts, PageBreakPlaceholder)
			}
		case HeadingBlock:
			level := min(max(b.Level, 1), 6)
			parts = append(parts, strings.Repeat("#", level)+" "+escapeInline(b.Text))
		case BoldBlock:
			parts = append(parts, "**"+escapeInline(b.Text)+"**")
		default:
			parts = append(parts, escapeText(b.Text))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "\n\n") + "\n"
}

// escapeText escapes a multi-line paragraph. Line breaks inside the
// paragraph become hard breaks.
func escapeText(s string) string {
	s = normalizeLineEndings(s)
	s = leadingBlanks.ReplaceAllStringFunc(s, nbsp)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = escapePunct(line)
	}
	return strings.Join(lines, "\\\n")
}

// escapeInline escapes single-line content such as headings.
func escapeInline(s string) string {
	s = normalizeLineEndings(s)
	s = strings.ReplaceAll(s, "\n", " ")
	return escapePunct(s)
}

// normalizeLineEndings converts \r\n and \r to \n.
func normalizeLineEndings(content string) string {
	return crlfOrCR.ReplaceAllString(content, "\n")
}

// nbsp replaces blanks with no-break spaces, a tab counting as four.
func nbsp(blanks string) string {
	var sb strings.Builder
	for _, r := range blanks {
		if r == '\t' {
			sb.WriteString(strings.Repeat("\u00a0", 4))
			continue
		}
		sb.WriteString("\u00a0")
	}
	return sb.String()
}

// escapePunct backslash-escapes every ASCII punctuation character, which
// both CommonMark and Pandoc read as the literal character.
func escapePunct(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if r < 0x80 && isASCIIPunct(byte(r)) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func isASCIIPunct(c byte) bool {
	return (c >= '!' && c <= '/') || (c >= ':' && c <= '@') ||
		(c >= '[' && c <= '`') || (c >= '{' && c <= '~')
}
