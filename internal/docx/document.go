// Package docx reads, edits and writes Word (.docx) documents.
//
// Only word/document.xml is parsed; every other part of the package (styles,
// numbering, media, relationships) is carried through byte for byte so a
// saved document keeps the formatting of the one it was read from.
package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// DocumentPart is the archive entry holding the document body.
const DocumentPart = "word/document.xml"

// WordNamespace is the WordprocessingML main namespace.
const WordNamespace = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// MaxPartSize bounds the uncompressed size of a single archive entry.
var MaxPartSize int64 = 64 << 20

// Sentinel errors for document operations.
var (
	ErrInvalidDocument = errors.New("invalid Word document")
	ErrMissingBody     = errors.New("document has no body")
	ErrPartTooLarge    = errors.New("document part exceeds maximum size")
)

// part is one archive entry other than the document body.
type part struct {
	header zip.FileHeader
	data   []byte
}

// Document is a parsed .docx package.
type Document struct {
	parts  []part // archive order; the body part holds no data
	nodes  []*Node
	root   *Node
	body   *Node
	prefix string
}

// Open reads and parses the .docx file at path.
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the session store
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return Parse(data)
}

// Parse parses a .docx package held in memory.
func Parse(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	doc := &Document{}
	found := false
	for _, f := range zr.File {
		content, err := readPart(f)
		if err != nil {
			return nil, err
		}

		if f.Name == DocumentPart {
			found = true
			nodes, err := parseXML(bytes.NewReader(content))
			if err != nil {
				return nil, fmt.Errorf("%w: parsing %s: %v", ErrInvalidDocument, DocumentPart, err)
			}
			doc.nodes = nodes
			doc.parts = append(doc.parts, part{header: f.FileHeader})
			continue
		}
		doc.parts = append(doc.parts, part{header: f.FileHeader, data: content})
	}

	if !found {
		return nil, fmt.Errorf("%w: %s not found in archive", ErrInvalidDocument, DocumentPart)
	}
	if err := doc.index(); err != nil {
		return nil, err
	}
	return doc, nil
}

func readPart(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > uint64(MaxPartSize) {
		return nil, fmt.Errorf("%w: %s", ErrPartTooLarge, f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrInvalidDocument, f.Name, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(io.LimitReader(rc, MaxPartSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrInvalidDocument, f.Name, err)
	}
	if int64(len(content)) > MaxPartSize {
		return nil, fmt.Errorf("%w: %s", ErrPartTooLarge, f.Name)
	}
	return content, nil
}

// index locates the root element, the body and the WordprocessingML prefix.
func (d *Document) index() error {
	d.root, d.body = nil, nil
	for _, n := range d.nodes {
		if n.Type == ElementNode {
			d.root = n
			break
		}
	}
	if d.root == nil || d.root.Name.Local != "document" {
		return fmt.Errorf("%w: missing w:document root", ErrInvalidDocument)
	}

	d.prefix = d.root.Name.Space
	for _, a := range d.root.Attr {
		if a.Name.Space == "xmlns" && a.Value == WordNamespace {
			d.prefix = a.Name.Local
			break
		}
	}

	d.body = d.root.Child("body")
	if d.body == nil {
		return ErrMissingBody
	}
	return nil
}

// Clone returns an independent copy of the document. Untouched parts are
// shared since they are never modified.
func (d *Document) Clone() *Document {
	c := &Document{
		parts: append([]part(nil), d.parts...),
		nodes: CloneNodes(d.nodes),
	}
	// index cannot fail on a copy of an indexed document.
	_ = c.index()
	return c
}

// Prefix returns the namespace prefix used for WordprocessingML elements.
func (d *Document) Prefix() string {
	return d.prefix
}

// Blocks returns the block-level body content (paragraphs, tables, ...)
// without the trailing section properties. The returned nodes are live.
func (d *Document) Blocks() []*Node {
	var blocks []*Node
	for _, n := range d.body.Children {
		if n.Type != ElementNode || n.Is("sectPr") {
			continue
		}
		blocks = append(blocks, n)
	}
	return blocks
}

// SetBlocks replaces the body content, keeping the section properties last.
func (d *Document) SetBlocks(blocks []*Node) {
	sectPr := d.body.Child("sectPr")
	children := make([]*Node, 0, len(blocks)+1)
	children = append(children, blocks...)
	if sectPr != nil {
		children = append(children, sectPr)
	}
	d.body.Children = children
}

// Paragraphs returns every paragraph of the body in document order,
// including paragraphs nested in tables and content controls.
func (d *Document) Paragraphs() []*Node {
	var paras []*Node
	for _, block := range d.Blocks() {
		Walk(block, func(n *Node) bool {
			if n.Is("p") {
				paras = append(paras, n)
				return false
			}
			return true
		})
	}
	return paras
}

// PageBreak builds a paragraph holding a single explicit page break.
func (d *Document) PageBreak() *Node {
	br := d.element("br")
	br.SetAttr(d.prefix, "type", "page")
	return d.element("p", d.element("r", br))
}

// Paragraph builds a paragraph with one run per text.
func (d *Document) Paragraph(texts ...string) *Node {
	p := d.element("p")
	for _, s := range texts {
		t := d.element("t")
		SetText(t, s)
		p.Children = append(p.Children, d.element("r", t))
	}
	return p
}

func (d *Document) element(local string, children ...*Node) *Node {
	return &Node{
		Type:     ElementNode,
		Name:     xmlName(d.prefix, local),
		Children: children,
	}
}

// Bytes serializes the document back into a .docx package.
func (d *Document) Bytes() ([]byte, error) {
	var body strings.Builder
	writeXML(&body, d.nodes)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range d.parts {
		header := zip.FileHeader{
			Name:     p.header.Name,
			Method:   zip.Deflate,
			Modified: p.header.Modified,
		}
		if p.header.Method == zip.Store {
			header.Method = zip.Store
		}
		data := p.data
		if header.Name == DocumentPart {
			data = []byte(body.String())
		}

		w, err := zw.CreateHeader(&header)
		if err != nil {
			return nil, fmt.Errorf("writing %s: %w", header.Name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("writing %s: %w", header.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing archive: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the document to path.
func (d *Document) Save(path string) error {
	data, err := d.Bytes()
	if err != nil {
		return err
	}
	// #nosec G306 -- merged documents are served back to the uploader
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}
