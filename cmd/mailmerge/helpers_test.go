package main

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	mailmerge "github.com/alnah/go-mailmerge"
	"github.com/alnah/go-mailmerge/internal/docx/docxtest"
	"github.com/alnah/go-mailmerge/internal/pipeline"
	"github.com/alnah/go-mailmerge/internal/tabular/tabulartest"
)

func fixedNow() time.Time {
	return time.Date(2024, time.January, 31, 15, 45, 2, 0, time.UTC)
}

// unavailableRenderer fails like a renderer whose binary is missing.
type unavailableRenderer struct{}

func (unavailableRenderer) Name() string { return "missing" }

func (unavailableRenderer) Render(context.Context, *pipeline.Markup, *mailmerge.PageSettings, string) (string, error) {
	return "", fmt.Errorf("%w: not installed", mailmerge.ErrRendererUnavailable)
}

// newTestEnv returns an environment writing to buffers whose services
// render through unavailableRenderer.
func newTestEnv() (*Environment, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	env := &Environment{
		Now:    fixedNow,
		Stdout: &stdout,
		Stderr: &stderr,
		NewService: func(opts ...mailmerge.Option) (*mailmerge.Service, error) {
			return mailmerge.New(append(opts, mailmerge.WithRenderers(unavailableRenderer{}))...)
		},
	}
	return env, &stdout, &stderr
}

func letterParas() []docxtest.Para {
	return []docxtest.Para{
		docxtest.B("Invoice"),
		docxtest.P("Dear ", "{{first_name}}", " ", "{{last_name}}", ","),
	}
}

func peopleRows() [][]any {
	return [][]any{
		tabulartest.Row("first_name", "last_name"),
		tabulartest.Row("John", "Doe"),
		tabulartest.Row("Jane", "Roe"),
	}
}

// writeInputs writes the letter template and a two-record spreadsheet.
func writeInputs(t *testing.T) (template, data string) {
	t.Helper()
	dir := t.TempDir()
	return docxtest.Write(t, dir, "letter.docx", letterParas()...),
		tabulartest.Write(t, dir, "people.xlsx", peopleRows()...)
}
