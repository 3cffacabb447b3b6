package mailmerge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-mailmerge/internal/docx"
	"github.com/alnah/go-mailmerge/internal/pipeline"
)

// Renderer turns extracted markup into a fixed-layout file. Render writes
// to outputPath and returns the path of the written file.
type Renderer interface {
	Name() string
	Render(ctx context.Context, m *pipeline.Markup, page *PageSettings, outputPath string) (string, error)
}

// Compile-time interface checks.
var (
	_ Renderer = (*ChromeRenderer)(nil)
	_ Renderer = (*PandocRenderer)(nil)
)

// ConvertJob pairs an assembled document with its PDF destination.
type ConvertJob struct {
	DocxPath string
	PDFPath  string
}

// Converter renders assembled Word documents to PDF through an ordered
// renderer chain. Each attempt runs under its own timeout; the first
// attempt producing a valid PDF wins.
type Converter struct {
	renderers []Renderer
	timeout   time.Duration
	markers   []string
	page      *PageSettings
	workers   int
	logger    *slog.Logger
	validate  func(path string) (int, error)
}

// NewConverter creates a Converter. A nil page uses DefaultPageSettings;
// workers < 1 uses ResolvePoolSize(0).
func NewConverter(renderers []Renderer, timeout time.Duration, page *PageSettings, markers []string, workers int, logger *slog.Logger) *Converter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if page == nil {
		page = DefaultPageSettings()
	}
	if workers < 1 {
		workers = ResolvePoolSize(0)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Converter{
		renderers: renderers,
		timeout:   timeout,
		markers:   markers,
		page:      page,
		workers:   workers,
		logger:    logger,
		validate:  ValidatePDF,
	}
}

// Convert renders the document at docxPath to pdfPath and deletes docxPath
// on success. Fails with ErrConversionEngineUnavailable when every renderer
// is unavailable, ErrConversionFailed otherwise.
func (c *Converter) Convert(ctx context.Context, docxPath, pdfPath string) (string, error) {
	doc, err := docx.Open(docxPath)
	if err != nil {
		return "", fmt.Errorf("%w: reading assembled document: %v", ErrConversionFailed, err)
	}
	markup := pipeline.Extract(doc, c.markers)

	if len(c.renderers) == 0 {
		return "", fmt.Errorf("%w: no renderer configured", ErrConversionEngineUnavailable)
	}

	var errs []error
	unavailable := 0
	for i, r := range c.renderers {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%w: %v", ErrConversionFailed, err)
		}
		if i > 0 {
			c.logger.Info("falling back to next renderer", "renderer", r.Name(), "document", docxPath)
		}

		out, err := c.attempt(ctx, r, markup, pdfPath)
		if err == nil {
			if rmErr := os.Remove(docxPath); rmErr != nil && !os.IsNotExist(rmErr) {
				c.logger.Warn("removing intermediate document failed", "path", docxPath, "error", rmErr)
			}
			return out, nil
		}

		c.logger.Warn("renderer attempt failed", "renderer", r.Name(), "error", err)
		_ = os.Remove(pdfPath)
		if isUnavailable(err) {
			unavailable++
		}
		errs = append(errs, fmt.Errorf("%s: %w", r.Name(), err))
	}

	joined := errors.Join(errs...)
	if unavailable == len(c.renderers) {
		return "", fmt.Errorf("%w: %w", ErrConversionEngineUnavailable, joined)
	}
	return "", fmt.Errorf("%w: %w", ErrConversionFailed, joined)
}

// attempt runs one renderer under the per-attempt timeout and validates
// its output.
func (c *Converter) attempt(ctx context.Context, r Renderer, m *pipeline.Markup, pdfPath string) (string, error) {
	actx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := r.Render(actx, m, c.page, pdfPath)
	if err != nil {
		if errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("timed out after %s: %w", c.timeout, err)
		}
		return "", err
	}
	if out == "" {
		out = pdfPath
	}
	if _, err := c.validate(out); err != nil {
		return "", err
	}
	return out, nil
}

// ConvertAll converts jobs concurrently, at most workers at a time. The
// first failure cancels the remaining jobs and is returned.
func (c *Converter) ConvertAll(ctx context.Context, jobs []ConvertJob) ([]string, error) {
	outs := make([]string, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, job := range jobs {
		g.Go(func() error {
			out, err := c.Convert(gctx, job.DocxPath, job.PDFPath)
			if err != nil {
				return err
			}
			outs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outs, nil
}

// Close releases renderer resources (browser instances).
func (c *Converter) Close() error {
	var errs []error
	for _, r := range c.renderers {
		if closer, ok := r.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", r.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// isUnavailable reports whether err means the renderer could not run.
func isUnavailable(err error) bool {
	return errors.Is(err, ErrRendererUnavailable) || errors.Is(err, ErrBrowserConnect)
}
