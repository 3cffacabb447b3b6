package docx

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// NodeType identifies the kind of XML node held by a Node.
type NodeType int

// Node types.
const (
	ElementNode NodeType = iota
	TextNode
	ProcInstNode
	CommentNode
	DirectiveNode
)

// Node is one node of a parsed XML part.
//
// Names and attributes keep their raw namespace prefixes (Name.Space holds
// "w", not the namespace URI) so a part serializes back with the prefixes
// Word wrote.
type Node struct {
	Type     NodeType
	Name     xml.Name
	Attr     []xml.Attr
	Children []*Node
	Data     string // text, comment, directive or processing instruction payload
	Target   string // processing instruction target
}

var errUnbalanced = errors.New("unbalanced XML elements")

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{
		Type:   n.Type,
		Name:   n.Name,
		Data:   n.Data,
		Target: n.Target,
	}
	if len(n.Attr) > 0 {
		c.Attr = append([]xml.Attr(nil), n.Attr...)
	}
	if len(n.Children) > 0 {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.Clone()
		}
	}
	return c
}

// CloneNodes deep-copies a list of nodes.
func CloneNodes(nodes []*Node) []*Node {
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

// Is reports whether n is an element with the given local name.
func (n *Node) Is(local string) bool {
	return n != nil && n.Type == ElementNode && n.Name.Local == local
}

// Child returns the first child element with the given local name.
func (n *Node) Child(local string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Is(local) {
			return c
		}
	}
	return nil
}

// AttrValue returns the value of the attribute with the given local name,
// whatever its prefix.
func (n *Node) AttrValue(local string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttr sets a prefixed attribute, replacing an existing one with the
// same prefix and local name.
func (n *Node) SetAttr(prefix, local, value string) {
	for i, a := range n.Attr {
		if a.Name.Space == prefix && a.Name.Local == local {
			n.Attr[i].Value = value
			return
		}
	}
	n.Attr = append(n.Attr, xml.Attr{Name: xml.Name{Space: prefix, Local: local}, Value: value})
}

// Walk visits n and its descendants depth-first. Returning false from fn
// skips the children of the visited node.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// parseXML reads a whole XML part into a list of top-level nodes.
// RawToken is used so prefixes are kept verbatim.
func parseXML(r io.Reader) ([]*Node, error) {
	dec := xml.NewDecoder(r)

	var roots []*Node
	var stack []*Node

	add := func(n *Node) {
		if len(stack) == 0 {
			roots = append(roots, n)
			return
		}
		parent := stack[len(stack)-1]
		parent.Children = append(parent.Children, n)
	}

	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Type: ElementNode, Name: t.Name}
			if len(t.Attr) > 0 {
				n.Attr = append([]xml.Attr(nil), t.Attr...)
			}
			add(n)
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) == 0 || stack[len(stack)-1].Name != t.Name {
				return nil, fmt.Errorf("%w: unexpected </%s>", errUnbalanced, qualified(t.Name))
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			// Whitespace between the prolog and the root element carries nothing.
			if len(stack) == 0 {
				continue
			}
			add(&Node{Type: TextNode, Data: string(t)})
		case xml.Comment:
			add(&Node{Type: CommentNode, Data: string(t)})
		case xml.ProcInst:
			add(&Node{Type: ProcInstNode, Target: t.Target, Data: string(t.Inst)})
		case xml.Directive:
			add(&Node{Type: DirectiveNode, Data: string(t)})
		}
	}

	if len(stack) != 0 {
		return nil, fmt.Errorf("%w: <%s> not closed", errUnbalanced, qualified(stack[len(stack)-1].Name))
	}
	return roots, nil
}

// writeXML serializes nodes back to XML text.
func writeXML(w *strings.Builder, nodes []*Node) {
	for _, n := range nodes {
		writeNode(w, n)
	}
}

func writeNode(w *strings.Builder, n *Node) {
	switch n.Type {
	case TextNode:
		_, _ = textEscaper.WriteString(w, n.Data)
	case CommentNode:
		w.WriteString("<!--")
		w.WriteString(n.Data)
		w.WriteString("-->")
	case ProcInstNode:
		w.WriteString("<?")
		w.WriteString(n.Target)
		if n.Data != "" {
			w.WriteByte(' ')
			w.WriteString(n.Data)
		}
		w.WriteString("?>")
	case DirectiveNode:
		w.WriteString("<!")
		w.WriteString(n.Data)
		w.WriteString(">")
	case ElementNode:
		name := qualified(n.Name)
		w.WriteByte('<')
		w.WriteString(name)
		for _, a := range n.Attr {
			w.WriteByte(' ')
			w.WriteString(qualified(a.Name))
			w.WriteString(`="`)
			_, _ = attrEscaper.WriteString(w, a.Value)
			w.WriteByte('"')
		}
		if len(n.Children) == 0 {
			w.WriteString("/>")
			return
		}
		w.WriteByte('>')
		writeXML(w, n.Children)
		w.WriteString("</")
		w.WriteString(name)
		w.WriteByte('>')
	}
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer(
		"&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;",
		"\n", "&#xA;", "\r", "&#xD;", "\t", "&#x9;",
	)
)

func qualified(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}
