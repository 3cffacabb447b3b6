package mailmerge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strings"

	"github.com/alnah/go-mailmerge/internal/pipeline"
	"github.com/alnah/go-mailmerge/internal/process"
)

// pdfEngineNotFound is pandoc's exit status when --pdf-engine is missing.
const pdfEngineNotFound = 47

// FallbackPandocEngine is tried after the configured pandoc engine.
const FallbackPandocEngine = "pdflatex"

// ExitError reports a command that ran and exited with a non-zero status.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return fmt.Sprintf("exit status %d: %s", e.Code, e.Stderr)
}

// CommandRunner runs an external command with stdin as its input.
// A non-zero exit is reported as an *ExitError.
type CommandRunner interface {
	Run(ctx context.Context, stdin, name string, args ...string) error
}

// ExecRunner runs commands with os/exec in their own process group, so a
// cancelled context kills the PDF engine pandoc spawned too.
type ExecRunner struct{}

// Run implements CommandRunner.
func (ExecRunner) Run(ctx context.Context, stdin, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	process.Isolate(cmd)
	cmd.Stdin = strings.NewReader(stdin)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		return &ExitError{Code: exitErr.ExitCode(), Stderr: strings.TrimSpace(stderr.String())}
	}
	return err
}

// PandocRenderer converts markup with the pandoc binary. Engines are tried
// in order; one that pandoc reports as missing moves on to the next.
type PandocRenderer struct {
	Binary   string
	Engines  []string
	Runner   CommandRunner
	LookPath func(file string) (string, error)
}

// NewPandocRenderer creates a renderer running binary with the given PDF
// engines. FallbackPandocEngine is appended when absent.
func NewPandocRenderer(binary string, engines ...string) *PandocRenderer {
	if binary == "" {
		binary = DefaultPandocBinary
	}
	var list []string
	for _, e := range append(engines, FallbackPandocEngine) {
		if e != "" && !slices.Contains(list, e) {
			list = append(list, e)
		}
	}
	return &PandocRenderer{
		Binary:   binary,
		Engines:  list,
		Runner:   ExecRunner{},
		LookPath: exec.LookPath,
	}
}

// Name implements Renderer.
func (r *PandocRenderer) Name() string { return EnginePandoc }

// Render implements Renderer.
func (r *PandocRenderer) Render(ctx context.Context, m *pipeline.Markup, page *PageSettings, outputPath string) (string, error) {
	bin, err := r.LookPath(r.Binary)
	if err != nil {
		return "", fmt.Errorf("%w: %s not found: %v", ErrRendererUnavailable, r.Binary, err)
	}

	input := m.Markdown(pipeline.Pandoc)
	var missing []string
	for _, engine := range r.Engines {
		err := r.Runner.Run(ctx, input, bin, pandocArgs(engine, page, outputPath)...)
		if err == nil {
			return outputPath, nil
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", ErrPDFGeneration, ctx.Err())
		}
		var exitErr *ExitError
		if errors.As(err, &exitErr) && exitErr.Code == pdfEngineNotFound {
			missing = append(missing, engine)
			continue
		}
		return "", fmt.Errorf("%w: pandoc --pdf-engine=%s: %v", ErrPDFGeneration, engine, err)
	}
	return "", fmt.Errorf("%w: no PDF engine found (tried %s)", ErrRendererUnavailable, strings.Join(missing, ", "))
}

// htmlEngines lay out pages from HTML and take margins as -V margin-*.
var htmlEngines = map[string]bool{
	"wkhtmltopdf": true,
	"weasyprint":  true,
	"pagedjs-cli": true,
	"prince":      true,
}

// wkhtmlSizes maps page sizes to wkhtmltopdf --page-size names.
var wkhtmlSizes = map[string]string{
	PageSizeLetter: "Letter",
	PageSizeA4:     "A4",
	PageSizeLegal:  "Legal",
}

// pandocArgs builds the pandoc command line reading Markdown on stdin.
func pandocArgs(engine string, page *PageSettings, outputPath string) []string {
	if page == nil {
		page = DefaultPageSettings()
	}
	args := []string{
		"-f", "markdown-fancy_lists",
		"-o", outputPath,
		"--pdf-engine=" + engine,
	}

	margin := fmt.Sprintf("%gin", page.Margin)
	if !htmlEngines[engine] {
		width, height := page.Dimensions()
		return append(args,
			"-V", "geometry:margin="+margin,
			"-V", fmt.Sprintf("geometry:paperwidth=%gin", width),
			"-V", fmt.Sprintf("geometry:paperheight=%gin", height),
		)
	}

	if engine == "wkhtmltopdf" {
		orientation := "Portrait"
		if strings.EqualFold(page.Orientation, OrientationLandscape) {
			orientation = "Landscape"
		}
		size, ok := wkhtmlSizes[strings.ToLower(page.Size)]
		if !ok {
			size = "A4"
		}
		args = append(args,
			"--pdf-engine-opt=--page-size", "--pdf-engine-opt="+size,
			"--pdf-engine-opt=--orientation", "--pdf-engine-opt="+orientation,
		)
	}
	for _, side := range []string{"top", "right", "bottom", "left"} {
		args = append(args, "-V", "margin-"+side+"="+margin)
	}
	return args
}
