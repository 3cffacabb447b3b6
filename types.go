package mailmerge

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Page size constants.
const (
	PageSizeLetter = "letter"
	PageSizeA4     = "a4"
	PageSizeLegal  = "legal"
)

// Orientation constants.
const (
	OrientationPortrait  = "portrait"
	OrientationLandscape = "landscape"
)

// Margin bounds in inches.
const (
	MinMargin     = 0.25
	MaxMargin     = 3.0
	DefaultMargin = 0.5
)

// paperSizes holds portrait width and height in inches.
var paperSizes = map[string][2]float64{
	PageSizeLetter: {8.5, 11},
	PageSizeA4:     {8.27, 11.69},
	PageSizeLegal:  {8.5, 14},
}

// PageSettings configures the rendered page. Every renderer of a chain
// receives the same settings.
type PageSettings struct {
	Size        string  // "letter", "a4", "legal"
	Orientation string  // "portrait", "landscape"
	Margin      float64 // inches, applied to all sides
}

// DefaultPageSettings returns A4 portrait with half-inch margins.
func DefaultPageSettings() *PageSettings {
	return &PageSettings{
		Size:        PageSizeA4,
		Orientation: OrientationPortrait,
		Margin:      DefaultMargin,
	}
}

// Validate checks that page settings are valid.
// Returns nil if p is nil (nil means use defaults).
func (p *PageSettings) Validate() error {
	if p == nil {
		return nil
	}
	if _, ok := paperSizes[strings.ToLower(p.Size)]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPageSize, p.Size)
	}
	switch strings.ToLower(p.Orientation) {
	case OrientationPortrait, OrientationLandscape:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOrientation, p.Orientation)
	}
	if p.Margin < MinMargin || p.Margin > MaxMargin {
		return fmt.Errorf("%w: %.2f (must be between %.2f and %.2f)", ErrInvalidMargin, p.Margin, MinMargin, MaxMargin)
	}
	return nil
}

// Dimensions returns the paper width and height in inches, swapped for
// landscape. Unknown sizes fall back to A4.
func (p *PageSettings) Dimensions() (width, height float64) {
	if p == nil {
		p = DefaultPageSettings()
	}
	dims, ok := paperSizes[strings.ToLower(p.Size)]
	if !ok {
		dims = paperSizes[PageSizeA4]
	}
	if strings.EqualFold(p.Orientation, OrientationLandscape) {
		return dims[1], dims[0]
	}
	return dims[0], dims[1]
}

// Content types of output artifacts.
const (
	ContentTypeWord = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	ContentTypePDF  = "application/pdf"
)

// Format selects the output document format.
type Format string

// Output formats.
const (
	FormatWord Format = "word"
	FormatPDF  Format = "pdf"
)

// ParseFormat parses "word" or "pdf", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatWord, FormatPDF:
		return f, nil
	}
	return "", fmt.Errorf("%w: unsupported output format %q (use word or pdf)", ErrInvalidFileType, s)
}

func (f Format) extension() string {
	if f == FormatPDF {
		return ".pdf"
	}
	return ".docx"
}

func (f Format) contentType() string {
	if f == FormatPDF {
		return ContentTypePDF
	}
	return ContentTypeWord
}

// MergeRequest selects the output of a merge.
type MergeRequest struct {
	Format        Format `json:"outputFormat"`
	MultipleFiles bool   `json:"multipleFiles"`
}

// UploadResult describes an accepted upload.
type UploadResult struct {
	Filename  string              `json:"filename"`
	Fields    []string            `json:"fields,omitempty"`
	Headers   []string            `json:"columns,omitempty"`
	Preview   []map[string]string `json:"preview,omitempty"`
	TotalRows int                 `json:"totalRows,omitempty"`
}

// MergeResult lists the files produced by a merge, in output order.
type MergeResult struct {
	Files []string `json:"files"`
}

// Download is a registered output read back from disk.
type Download struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Status summarizes a session.
type Status struct {
	HasTemplate bool     `json:"hasTemplate"`
	HasData     bool     `json:"hasData"`
	OutputFiles []string `json:"outputFiles"`
}

// Output is a registered output artifact.
type Output struct {
	Filename    string
	Path        string
	ContentType string
}

// Option configures a Service.
type Option func(*serviceConfig)

// serviceConfig holds the configuration of a Service.
type serviceConfig struct {
	logger          *slog.Logger
	timeout         time.Duration
	maxSessions     int
	workDir         string
	page            *PageSettings
	timestampFormat string
	headingMarkers  []string
	engines         []string
	renderers       []Renderer
	workers         int
	style           string
	assetPath       string
	pandocBinary    string
	pandocEngine    string
	now             func() time.Time
}

// Defaults.
const (
	DefaultTimeout      = 60 * time.Second
	DefaultMaxSessions  = 50
	DefaultPandocBinary = "pandoc"
	DefaultPandocEngine = "wkhtmltopdf"
)

// Renderer engine names.
const (
	EngineChrome = "chrome"
	EnginePandoc = "pandoc"
)

func defaultServiceConfig() serviceConfig {
	return serviceConfig{
		logger:       slog.New(slog.DiscardHandler),
		timeout:      DefaultTimeout,
		maxSessions:  DefaultMaxSessions,
		page:         DefaultPageSettings(),
		engines:      []string{EngineChrome, EnginePandoc},
		pandocBinary: DefaultPandocBinary,
		pandocEngine: DefaultPandocEngine,
		now:          time.Now,
	}
}

// WithLogger sets the structured logger. Nil keeps the discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *serviceConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTimeout bounds each renderer attempt.
// Panics if d <= 0 (programmer error, similar to time.NewTicker).
func WithTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("mailmerge: WithTimeout duration must be positive")
	}
	return func(c *serviceConfig) { c.timeout = d }
}

// WithMaxSessions bounds the number of live sessions.
// Panics if n < 1.
func WithMaxSessions(n int) Option {
	if n < 1 {
		panic("mailmerge: WithMaxSessions requires n >= 1")
	}
	return func(c *serviceConfig) { c.maxSessions = n }
}

// WithWorkDir sets the directory holding session directories. The
// directory is created if needed and kept on Close. By default a fresh
// directory under os.TempDir is created and removed on Close.
func WithWorkDir(dir string) Option {
	return func(c *serviceConfig) { c.workDir = dir }
}

// WithPage sets the rendered page settings.
func WithPage(p *PageSettings) Option {
	return func(c *serviceConfig) { c.page = p }
}

// WithTimestampFormat sets the date-token format of output names
// (e.g. "YYYYMMDD_HHmmss", "iso").
func WithTimestampFormat(format string) Option {
	return func(c *serviceConfig) { c.timestampFormat = format }
}

// WithHeadingMarkers sets the paragraph texts rendered as headings.
func WithHeadingMarkers(markers ...string) Option {
	return func(c *serviceConfig) { c.headingMarkers = markers }
}

// WithEngines selects and orders the built-in renderers by name
// ("chrome", "pandoc").
func WithEngines(names ...string) Option {
	return func(c *serviceConfig) { c.engines = names }
}

// WithRenderers replaces the renderer chain. Takes precedence over
// WithEngines.
func WithRenderers(renderers ...Renderer) Option {
	return func(c *serviceConfig) { c.renderers = renderers }
}

// WithWorkers bounds concurrent conversions and browser instances.
// 0 derives the count from GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *serviceConfig) { c.workers = n }
}

// WithStyle selects the stylesheet by name.
func WithStyle(name string) Option {
	return func(c *serviceConfig) { c.style = name }
}

// WithAssetPath sets a directory whose styles/ override embedded styles.
func WithAssetPath(dir string) Option {
	return func(c *serviceConfig) { c.assetPath = dir }
}

// WithPandoc sets the pandoc binary and its --pdf-engine.
func WithPandoc(binary, pdfEngine string) Option {
	return func(c *serviceConfig) {
		if binary != "" {
			c.pandocBinary = binary
		}
		if pdfEngine != "" {
			c.pandocEngine = pdfEngine
		}
	}
}

// WithClock sets the time source used for timestamps and session ages.
func WithClock(now func() time.Time) Option {
	return func(c *serviceConfig) {
		if now != nil {
			c.now = now
		}
	}
}
