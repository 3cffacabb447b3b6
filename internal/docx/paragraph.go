package docx

import (
	"encoding/xml"
	"strings"
)

// xmlName builds an element name with a raw prefix.
func xmlName(prefix, local string) xml.Name {
	return xml.Name{Space: prefix, Local: local}
}

// TextElements returns every literal text element (w:t, a:t, m:t, ...)
// under the given nodes, in document order.
func TextElements(nodes []*Node) []*Node {
	var out []*Node
	for _, n := range nodes {
		Walk(n, func(c *Node) bool {
			if c.Is("t") {
				out = append(out, c)
				return false
			}
			return true
		})
	}
	return out
}

// Text returns the character data held directly by a text element.
func Text(t *Node) string {
	var sb strings.Builder
	for _, c := range t.Children {
		if c.Type == TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

// SetText replaces the content of a text element. Word drops leading and
// trailing spaces unless xml:space="preserve" is set, so it is added when
// needed.
func SetText(t *Node, s string) {
	t.Children = []*Node{{Type: TextNode, Data: s}}
	if s != strings.TrimSpace(s) {
		t.SetAttr("xml", "space", "preserve")
	}
}

// ParagraphText returns the visible text of a paragraph: text runs, tabs
// and line breaks. Page breaks contribute nothing.
func ParagraphText(p *Node) string {
	var sb strings.Builder
	Walk(p, func(n *Node) bool {
		if n.Type != ElementNode {
			return true
		}
		switch n.Name.Local {
		case "t":
			sb.WriteString(Text(n))
			return false
		case "tab":
			sb.WriteByte('\t')
		case "br", "cr":
			if v, _ := n.AttrValue("type"); v == "" || v == "textWrapping" {
				sb.WriteByte('\n')
			}
		case "pPr", "rPr", "instrText", "delText":
			return false
		}
		return true
	})
	return sb.String()
}

// HasPageBreak reports whether a paragraph carries an explicit page break,
// either as a w:br of type page or as the pageBreakBefore property.
func HasPageBreak(p *Node) bool {
	return PageBreakBefore(p) || hasBreakRun(p)
}

// PageBreakBefore reports whether the paragraph starts on a new page
// through its w:pageBreakBefore property.
func PageBreakBefore(p *Node) bool {
	pb := p.Child("pPr").Child("pageBreakBefore")
	return pb != nil && isOn(pb)
}

// SplitAtPageBreaks cuts a paragraph at each w:br of type page and returns
// the segments in order, each a paragraph carrying a copy of the original
// properties. A break inside a run container (hyperlink, w:ins, ...) cuts
// after that container. Without page break runs p itself is returned.
func SplitAtPageBreaks(p *Node) []*Node {
	if !hasBreakRun(p) {
		return []*Node{p}
	}

	var segments []*Node
	cur := emptyCopy(p, "pPr")
	cut := func() {
		segments = append(segments, cur)
		cur = emptyCopy(p, "pPr")
	}

	for _, c := range p.Children {
		switch {
		case c.Is("pPr"):
		case c.Is("r"):
			part := emptyCopy(c, "rPr")
			kept := len(part.Children)
			for _, rc := range c.Children {
				switch {
				case rc.Is("rPr"):
				case isPageBreak(rc):
					if len(part.Children) > kept {
						cur.Children = append(cur.Children, part)
					}
					cut()
					part = emptyCopy(c, "rPr")
				default:
					part.Children = append(part.Children, rc.Clone())
				}
			}
			if len(part.Children) > kept {
				cur.Children = append(cur.Children, part)
			}
		case hasBreakRun(c):
			cur.Children = append(cur.Children, c.Clone())
			cut()
		default:
			cur.Children = append(cur.Children, c.Clone())
		}
	}
	return append(segments, cur)
}

// emptyCopy returns n without children except a clone of its props element.
func emptyCopy(n *Node, props string) *Node {
	c := &Node{Type: n.Type, Name: n.Name}
	if len(n.Attr) > 0 {
		c.Attr = append([]xml.Attr(nil), n.Attr...)
	}
	if pr := n.Child(props); pr != nil {
		c.Children = []*Node{pr.Clone()}
	}
	return c
}

func isPageBreak(n *Node) bool {
	if !n.Is("br") {
		return false
	}
	v, _ := n.AttrValue("type")
	return v == "page"
}

func hasBreakRun(p *Node) bool {
	found := false
	Walk(p, func(n *Node) bool {
		if found {
			return false
		}
		if isPageBreak(n) {
			found = true
		}
		return true
	})
	return found
}

// HasBold reports whether any run of the paragraph that holds text is bold.
func HasBold(p *Node) bool {
	bold := false
	Walk(p, func(n *Node) bool {
		if bold {
			return false
		}
		if !n.Is("r") {
			return true
		}
		rPr := n.Child("rPr")
		if rPr == nil {
			return false
		}
		b := rPr.Child("b")
		if b == nil || !isOn(b) {
			return false
		}
		for _, t := range TextElements([]*Node{n}) {
			if strings.TrimSpace(Text(t)) != "" {
				bold = true
				break
			}
		}
		return false
	})
	return bold
}

// StyleID returns the paragraph style id (w:pPr/w:pStyle/@w:val).
func StyleID(p *Node) string {
	style := p.Child("pPr").Child("pStyle")
	if style == nil {
		return ""
	}
	v, _ := style.AttrValue("val")
	return v
}

// isOn interprets an OOXML on/off property: absent val means on.
func isOn(n *Node) bool {
	v, ok := n.AttrValue("val")
	if !ok {
		return true
	}
	switch strings.ToLower(v) {
	case "0", "false", "off", "none":
		return false
	}
	return true
}
