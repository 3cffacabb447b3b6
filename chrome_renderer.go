package mailmerge

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/alnah/go-mailmerge/internal/fileutil"
	"github.com/alnah/go-mailmerge/internal/pipeline"
	"github.com/alnah/go-mailmerge/internal/process"
)

// ChromeRenderer prints markup to PDF with headless Chrome: markup is
// converted to sanitized HTML, styled, written to a temporary file next to
// the output and printed by a pooled browser.
type ChromeRenderer struct {
	pool    *BrowserPool
	builder *pipeline.HTMLBuilder
	css     string
}

// NewChromeRenderer creates a renderer drawing browsers from pool and
// styling documents with css.
func NewChromeRenderer(pool *BrowserPool, css string) *ChromeRenderer {
	return &ChromeRenderer{
		pool:    pool,
		builder: pipeline.NewHTMLBuilder(),
		css:     css,
	}
}

// Name implements Renderer.
func (r *ChromeRenderer) Name() string { return EngineChrome }

// Render implements Renderer.
func (r *ChromeRenderer) Render(ctx context.Context, m *pipeline.Markup, page *PageSettings, outputPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	title := strings.TrimSuffix(filepath.Base(outputPath), filepath.Ext(outputPath))
	htmlContent, err := r.builder.Build(ctx, m, title, r.css)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPDFGeneration, err)
	}

	tmpPath, cleanup, err := fileutil.WriteTempFile(filepath.Dir(outputPath), htmlContent, "html")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPDFGeneration, err)
	}
	defer cleanup()

	b, err := r.pool.acquire(ctx)
	if err != nil {
		return "", err
	}
	data, err := b.PrintToPDF(ctx, fileURL(tmpPath), page)
	r.pool.release(b, err == nil)
	if err != nil {
		return "", err
	}

	// #nosec G306 -- rendered documents are served back to the uploader
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: writing PDF: %v", ErrPDFGeneration, err)
	}
	return outputPath, nil
}

// Close releases the browsers.
func (r *ChromeRenderer) Close() error {
	return r.pool.Close()
}

// fileURL converts a local path to a file:// URL.
func fileURL(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p // C:/x -> /C:/x
	}
	return (&url.URL{Scheme: "file", Path: p}).String()
}

// rodBrowser is a launched Chrome process driven through go-rod.
type rodBrowser struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// launchRodBrowser starts Chrome. Rod downloads Chromium on first run if
// none is found. A launch still running when ctx ends is killed.
func launchRodBrowser(ctx context.Context) (pdfBrowser, error) {
	l := launcher.New()

	// Pre-installed browser (Docker/containerized environments).
	if bin := os.Getenv("ROD_BROWSER_BIN"); bin != "" {
		l = l.Bin(bin)
	}

	// NoSandbox required for CI and containerized environments.
	if os.Getenv("CI") == "true" || os.Getenv("ROD_NO_SANDBOX") == "1" || os.Getenv("ROD_BROWSER_BIN") != "" {
		l = l.NoSandbox(true)
	}

	type result struct {
		url string
		err error
	}
	started := make(chan result, 1)
	go func() {
		u, err := l.Launch()
		started <- result{url: u, err: err}
	}()

	var u string
	select {
	case res := <-started:
		if res.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, res.err)
		}
		u = res.url
	case <-ctx.Done():
		killLauncher(l)
		return nil, fmt.Errorf("launching browser: %w", ctx.Err())
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		killLauncher(l)
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}
	return &rodBrowser{launcher: l, browser: b}, nil
}

// PrintToPDF opens fileURL and prints it. The context bounds the whole
// operation.
func (r *rodBrowser) PrintToPDF(ctx context.Context, fileURL string, page *PageSettings) ([]byte, error) {
	p, err := r.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: fileURL})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageCreate, err)
	}
	defer func() { _ = p.Close() }()

	if err := p.WaitLoad(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}

	reader, err := p.PDF(buildPDFOptions(page))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPDFGeneration, err)
	}

	pdfBuf, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading PDF stream: %v", ErrPDFGeneration, err)
	}
	return pdfBuf, nil
}

// Close shuts the browser down and kills its process group.
func (r *rodBrowser) Close() error {
	err := r.browser.Close()
	killLauncher(r.launcher)
	return err
}

func killLauncher(l *launcher.Launcher) {
	pid := l.PID()
	l.Kill()
	process.KillProcessGroup(pid)
}

// buildPDFOptions maps page settings to Chrome's print options.
func buildPDFOptions(page *PageSettings) *proto.PagePrintToPDF {
	if page == nil {
		page = DefaultPageSettings()
	}
	width, height := page.Dimensions()
	return &proto.PagePrintToPDF{
		PaperWidth:      floatPtr(width),
		PaperHeight:     floatPtr(height),
		MarginTop:       floatPtr(page.Margin),
		MarginBottom:    floatPtr(page.Margin),
		MarginLeft:      floatPtr(page.Margin),
		MarginRight:     floatPtr(page.Margin),
		PrintBackground: true,
	}
}

// floatPtr returns a pointer to a float64 value.
func floatPtr(v float64) *float64 {
	return &v
}
