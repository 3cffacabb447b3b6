// Package fields substitutes {{name}} merge fields in Word text runs.
//
// Substitution works at text-element granularity: a field whose braces are
// split across several runs (Word does this when part of a field is
// reformatted or spell-checked) is not recognized.
package fields

import (
	"regexp"

	"github.com/alnah/go-mailmerge/internal/docx"
)

// pattern matches one merge field. Braces are not allowed inside the name
// so "{{a}}{{b}}" yields two fields.
var pattern = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// Values resolves a field name to its replacement text.
type Values interface {
	Lookup(name string) (string, bool)
}

// Map is a Values backed by a plain map.
type Map map[string]string

// Lookup implements Values.
func (m Map) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

// Substitute replaces every {{name}} whose name is a key of values inside
// the text elements under nodes and returns the number of replacements.
// Names match exactly and case-sensitively; unknown fields stay verbatim.
// Replacement text is never rescanned.
func Substitute(nodes []*docx.Node, values Values) int {
	count := 0
	for _, t := range docx.TextElements(nodes) {
		text := docx.Text(t)
		if len(text) < 4 {
			continue
		}
		replaced, n := replace(text, values)
		if n == 0 {
			continue
		}
		docx.SetText(t, replaced)
		count += n
	}
	return count
}

// SubstituteText applies the same replacement rules to a plain string.
func SubstituteText(text string, values Values) (string, int) {
	return replace(text, values)
}

func replace(text string, values Values) (string, int) {
	n := 0
	out := pattern.ReplaceAllStringFunc(text, func(match string) string {
		name := match[2 : len(match)-2]
		v, ok := values.Lookup(name)
		if !ok {
			return match
		}
		n++
		return v
	})
	return out, n
}

// Find returns the distinct field names used under nodes, in order of first
// appearance. Only fields contained in a single text element are reported,
// the same ones Substitute can fill. Empty "{{}}" pairs are ignored.
func Find(nodes []*docx.Node) []string {
	seen := make(map[string]bool)
	var names []string
	for _, t := range docx.TextElements(nodes) {
		for _, m := range pattern.FindAllStringSubmatch(docx.Text(t), -1) {
			name := m[1]
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}
