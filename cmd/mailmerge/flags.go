package main

import (
	"io"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/alnah/go-mailmerge/internal/config"
)

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
}

// renderFlags holds PDF rendering flags.
type renderFlags struct {
	timeout   time.Duration
	workers   int
	engines   []string
	style     string
	assetPath string
	pandoc    string
	pdfEngine string
	timestamp string
}

// pageFlags holds page layout flags.
type pageFlags struct {
	size        string
	orientation string
	margin      float64
}

// mergeFlags holds all flags for the merge command.
type mergeFlags struct {
	common   commonFlags
	render   renderFlags
	page     pageFlags
	template string
	data     string
	output   string
	pdf      bool
	multiple bool
}

// serveFlags holds all flags for the serve command.
type serveFlags struct {
	common      commonFlags
	render      renderFlags
	page        pageFlags
	addr        string
	maxUploadMB int
	maxSessions int
	workDir     string
}

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "show debug logs")
}

// addRenderFlags adds rendering flags to a FlagSet.
func addRenderFlags(fs *flag.FlagSet, f *renderFlags) {
	fs.DurationVar(&f.timeout, "timeout", 0, "timeout per renderer attempt (e.g., 30s, 2m)")
	fs.IntVarP(&f.workers, "workers", "w", 0, "concurrent conversions (0 = auto)")
	fs.StringSliceVar(&f.engines, "engines", nil, "renderers in fallback order: chrome,pandoc")
	fs.StringVar(&f.style, "style", "", "stylesheet name")
	fs.StringVar(&f.assetPath, "asset-path", "", "custom asset directory")
	fs.StringVar(&f.pandoc, "pandoc", "", "pandoc binary")
	fs.StringVar(&f.pdfEngine, "pdf-engine", "", "pandoc --pdf-engine value")
	fs.StringVar(&f.timestamp, "timestamp", "", "output name timestamp format (e.g., iso, YYYYMMDD_HHmmss)")
}

// addPageFlags adds page layout flags to a FlagSet.
func addPageFlags(fs *flag.FlagSet, f *pageFlags) {
	fs.StringVarP(&f.size, "page-size", "p", "", "page size: letter, a4, legal")
	fs.StringVar(&f.orientation, "orientation", "", "page orientation: portrait, landscape")
	fs.Float64Var(&f.margin, "margin", 0, "page margin in inches (0.25-3.0)")
}

// newFlagSet returns a FlagSet that reports errors only through Parse.
func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	return fs
}

// parseMergeFlags parses merge command flags. Positional arguments are
// rejected.
func parseMergeFlags(args []string) (*mergeFlags, error) {
	fs := newFlagSet("merge")
	f := &mergeFlags{}

	fs.StringVarP(&f.template, "template", "t", "", "Word template (.docx)")
	fs.StringVarP(&f.data, "data", "d", "", "spreadsheet (.xlsx, .xlsm)")
	fs.StringVarP(&f.output, "output", "o", ".", "output directory")
	fs.BoolVar(&f.pdf, "pdf", false, "produce PDF instead of Word")
	fs.BoolVarP(&f.multiple, "multiple", "m", false, "one file per record")

	addCommonFlags(fs, &f.common)
	addRenderFlags(fs, &f.render)
	addPageFlags(fs, &f.page)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, usageErrorf("unexpected argument %q", fs.Arg(0))
	}
	if f.template == "" || f.data == "" {
		return nil, usageErrorf("--template and --data are required")
	}
	return f, nil
}

// parseServeFlags parses serve command flags.
func parseServeFlags(args []string) (*serveFlags, error) {
	fs := newFlagSet("serve")
	f := &serveFlags{}

	fs.StringVar(&f.addr, "addr", "", "listen address (default :10000)")
	fs.IntVar(&f.maxUploadMB, "max-upload-mb", 0, "request body limit in MiB")
	fs.IntVar(&f.maxSessions, "max-sessions", 0, "live sessions kept before eviction")
	fs.StringVar(&f.workDir, "work-dir", "", "directory holding session files")

	addCommonFlags(fs, &f.common)
	addRenderFlags(fs, &f.render)
	addPageFlags(fs, &f.page)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, usageErrorf("unexpected argument %q", fs.Arg(0))
	}
	return f, nil
}

// applyRenderFlags merges rendering flags into config. Set flags win.
func applyRenderFlags(f *renderFlags, cfg *config.Config) {
	if f.timeout != 0 {
		cfg.Render.Timeout = f.timeout
	}
	if f.workers != 0 {
		cfg.Render.Workers = f.workers
	}
	if len(f.engines) > 0 {
		cfg.Render.Engines = f.engines
	}
	if f.style != "" {
		cfg.Render.Style = f.style
	}
	if f.assetPath != "" {
		cfg.Assets.BasePath = f.assetPath
	}
	if f.pandoc != "" {
		cfg.Render.Pandoc.Binary = f.pandoc
	}
	if f.pdfEngine != "" {
		cfg.Render.Pandoc.Engine = f.pdfEngine
	}
	if f.timestamp != "" {
		cfg.Naming.Timestamp = f.timestamp
	}
}

// applyPageFlags merges page flags into config. Set flags win.
func applyPageFlags(f *pageFlags, cfg *config.Config) {
	if f.size != "" {
		cfg.Page.Size = f.size
	}
	if f.orientation != "" {
		cfg.Page.Orientation = f.orientation
	}
	if f.margin != 0 {
		cfg.Page.Margin = f.margin
	}
}

// applyServeFlags merges server flags into config. Set flags win.
func applyServeFlags(f *serveFlags, cfg *config.Config) {
	if f.addr != "" {
		cfg.Server.Addr = f.addr
	}
	if f.maxUploadMB != 0 {
		cfg.Server.MaxUploadMB = f.maxUploadMB
	}
	if f.maxSessions != 0 {
		cfg.Sessions.Max = f.maxSessions
	}
	if f.workDir != "" {
		cfg.Sessions.WorkDir = f.workDir
	}
	applyRenderFlags(&f.render, cfg)
	applyPageFlags(&f.page, cfg)
}
