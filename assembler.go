package mailmerge

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alnah/go-mailmerge/internal/dateutil"
	"github.com/alnah/go-mailmerge/internal/docx"
	"github.com/alnah/go-mailmerge/internal/fields"
	"github.com/alnah/go-mailmerge/internal/fileutil"
	"github.com/alnah/go-mailmerge/internal/tabular"
)

// combinedPrefix names the single output of a combined merge.
const combinedPrefix = "mailmerge"

// Assembled is one document written by the Assembler.
type Assembled struct {
	Base         string // output name without extension
	Path         string // written .docx
	Replacements int
}

// Assembler builds merged Word documents from a template and records.
// The template document is never modified.
type Assembler struct {
	stamp *dateutil.Formatter
	now   func() time.Time
}

// NewAssembler creates an Assembler naming outputs with the date-token
// format (empty = dateutil.DefaultTimestampFormat).
func NewAssembler(timestampFormat string, now func() time.Time) (*Assembler, error) {
	f, err := dateutil.NewFormatter(timestampFormat)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &Assembler{stamp: f, now: now}, nil
}

// Combined writes one document holding every record in input order, with a
// page-break paragraph between consecutive records.
func (a *Assembler) Combined(tmpl *docx.Document, table *tabular.Table, dir string) (Assembled, error) {
	doc := tmpl.Clone()
	var body []*docx.Node
	total := 0
	for i, rec := range table.Records {
		if i > 0 {
			body = append(body, doc.PageBreak())
		}
		blocks := docx.CloneNodes(tmpl.Blocks())
		total += fields.Substitute(blocks, rec)
		body = append(body, blocks...)
	}
	doc.SetBlocks(body)

	base := combinedPrefix + "_" + a.stamp.Format(a.now())
	path := filepath.Join(dir, base+".docx")
	if err := doc.Save(path); err != nil {
		return Assembled{}, err
	}
	return Assembled{Base: base, Path: path, Replacements: total}, nil
}

// PerRecord writes one document per record, named after the record's first
// column value.
func (a *Assembler) PerRecord(tmpl *docx.Document, table *tabular.Table, dir string) ([]Assembled, error) {
	names := recordNames(table, a.stamp.Format(a.now()))
	out := make([]Assembled, 0, len(table.Records))
	for i, rec := range table.Records {
		doc := tmpl.Clone()
		blocks := doc.Blocks()
		n := fields.Substitute(blocks, rec)

		path := filepath.Join(dir, names[i]+".docx")
		if err := doc.Save(path); err != nil {
			return out, fmt.Errorf("record %d: %w", i+1, err)
		}
		out = append(out, Assembled{Base: names[i], Path: path, Replacements: n})
	}
	return out, nil
}

// recordNames derives one distinct output name per record:
// {first column}_{timestamp}, or record_{n}_{timestamp} when the first
// column is blank. Names repeated within the merge get _{n} appended.
func recordNames(table *tabular.Table, stamp string) []string {
	names := make([]string, len(table.Records))
	seen := make(map[string]bool, len(table.Records))
	first := ""
	if len(table.Headers) > 0 {
		first = table.Headers[0]
	}
	for i, rec := range table.Records {
		value := rec[first]
		name := "record_" + strconv.Itoa(i+1) + "_" + stamp
		if strings.TrimSpace(value) != "" {
			name = recordName(value) + "_" + stamp
		}
		if seen[strings.ToLower(name)] {
			name += "_" + strconv.Itoa(i+1)
		}
		seen[strings.ToLower(name)] = true
		names[i] = name
	}
	return names
}

// recordName sanitizes a first-column value for use as a file name.
func recordName(value string) string {
	name := fileutil.SanitizeFilename(value)
	if r := []rune(name); len(r) > fileutil.MaxNameLength {
		name = string(r[:fileutil.MaxNameLength])
	}
	// "." and ".." are not file names.
	if strings.Trim(name, ".") == "" {
		name = strings.ReplaceAll(name, ".", "_")
	}
	return name
}
