package pipeline

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// PageBreakClass is the class of the element replacing a page-break
// placeholder. Stylesheets force a page break after it.
const PageBreakClass = "page-break"

// ReplacePageBreaks turns every paragraph holding only the page-break
// placeholder into <div class="page-break"></div>. Stray placeholders inside
// other text are removed.
func ReplacePageBreaks(content string) (string, error) {
	if !strings.Contains(content, PageBreakPlaceholder) {
		return content, nil
	}

	doc, isFragment, err := parseHTML(content)
	if err != nil {
		return "", err
	}

	replaceBreaks(doc)

	return renderHTML(doc, isFragment)
}

// parseHTML parses HTML content, handling both full documents and fragments.
// Returns the parsed node, whether it was a fragment, and any error.
func parseHTML(content string) (*html.Node, bool, error) {
	trimmed := strings.ToLower(strings.TrimSpace(content))

	// Full document: starts with <!DOCTYPE or <html
	if strings.HasPrefix(trimmed, "<!doctype") || strings.HasPrefix(trimmed, "<html") {
		doc, err := html.Parse(strings.NewReader(content))
		return doc, false, err
	}

	// Fragment: parse with body context to avoid wrapping
	context := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Body,
		Data:     "body",
	}
	nodes, err := html.ParseFragment(strings.NewReader(content), context)
	if err != nil {
		return nil, true, err
	}

	// Wrap nodes in a container for uniform traversal
	container := &html.Node{Type: html.DocumentNode}
	for _, n := range nodes {
		container.AppendChild(n)
	}

	return container, true, nil
}

// renderHTML renders the document back to string.
// For fragments, only renders the children (avoids adding <html><body> wrapper).
func renderHTML(doc *html.Node, isFragment bool) (string, error) {
	var buf strings.Builder

	if isFragment {
		for c := doc.FirstChild; c != nil; c = c.NextSibling {
			if err := html.Render(&buf, c); err != nil {
				return "", err
			}
		}
		return buf.String(), nil
	}

	if err := html.Render(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// replaceBreaks traverses the DOM, swapping placeholder paragraphs for
// page-break elements.
func replaceBreaks(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling

		switch {
		case isBreakParagraph(c):
			n.InsertBefore(pageBreakNode(), c)
			n.RemoveChild(c)
		case c.Type == html.TextNode:
			c.Data = strings.ReplaceAll(c.Data, PageBreakPlaceholder, "")
		default:
			replaceBreaks(c)
		}

		c = next
	}
}

// isBreakParagraph reports whether n is a <p> whose only content is the
// placeholder, surrounding whitespace aside.
func isBreakParagraph(n *html.Node) bool {
	if n.Type != html.ElementNode || n.DataAtom != atom.P {
		return false
	}
	c := n.FirstChild
	if c == nil || c.NextSibling != nil || c.Type != html.TextNode {
		return false
	}
	return strings.TrimSpace(c.Data) == PageBreakPlaceholder
}

func pageBreakNode() *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Div,
		Data:     "div",
		Attr:     []html.Attribute{{Key: "class", Val: PageBreakClass}},
	}
}
