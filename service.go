package mailmerge

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alnah/go-mailmerge/internal/assets"
	"github.com/alnah/go-mailmerge/internal/docx"
	"github.com/alnah/go-mailmerge/internal/fields"
	"github.com/alnah/go-mailmerge/internal/fileutil"
	"github.com/alnah/go-mailmerge/internal/tabular"
)

// Accepted upload extensions per slot.
var (
	TemplateExtensions = []string{".docx"}
	DataExtensions     = []string{".xlsx", ".xlsm"}
)

// Upload slot names, used as file name prefixes in the session directory.
const (
	slotTemplate = "template"
	slotData     = "data"
)

// Service runs the mail-merge pipeline for many isolated sessions.
// It is safe for concurrent use by different sessions; concurrent calls on
// the same session must be serialized by the caller.
type Service struct {
	cfg       serviceConfig
	logger    *slog.Logger
	root      string
	ownsRoot  bool
	store     *SessionStore
	assembler *Assembler
	converter *Converter
}

// New creates a Service. Call Close to release browsers and temporary
// files.
func New(opts ...Option) (*Service, error) {
	cfg := defaultServiceConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.page == nil {
		cfg.page = DefaultPageSettings()
	}
	if err := cfg.page.Validate(); err != nil {
		return nil, err
	}

	assembler, err := NewAssembler(cfg.timestampFormat, cfg.now)
	if err != nil {
		return nil, err
	}

	renderers, err := buildRenderers(&cfg)
	if err != nil {
		return nil, err
	}

	root, ownsRoot := cfg.workDir, false
	if root == "" {
		if root, err = os.MkdirTemp("", "mailmerge-*"); err != nil {
			return nil, fmt.Errorf("creating work directory: %w", err)
		}
		ownsRoot = true
	} else if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("creating work directory: %w", err)
	}

	return &Service{
		cfg:       cfg,
		logger:    cfg.logger,
		root:      root,
		ownsRoot:  ownsRoot,
		store:     NewSessionStore(root, cfg.maxSessions, cfg.logger, cfg.now),
		assembler: assembler,
		converter: NewConverter(renderers, cfg.timeout, cfg.page, cfg.headingMarkers, ResolvePoolSize(cfg.workers), cfg.logger),
	}, nil
}

// buildRenderers resolves the renderer chain from the configured engine
// names unless renderers were injected.
func buildRenderers(cfg *serviceConfig) ([]Renderer, error) {
	if cfg.renderers != nil {
		return cfg.renderers, nil
	}

	var renderers []Renderer
	for _, name := range cfg.engines {
		switch name {
		case EngineChrome:
			css, err := loadStyle(cfg.assetPath, cfg.style)
			if err != nil {
				return nil, err
			}
			pool := NewBrowserPool(ResolvePoolSize(cfg.workers))
			renderers = append(renderers, NewChromeRenderer(pool, css))
		case EnginePandoc:
			renderers = append(renderers, NewPandocRenderer(cfg.pandocBinary, cfg.pandocEngine))
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
		}
	}
	return renderers, nil
}

// loadStyle reads the named stylesheet, custom asset directory first.
func loadStyle(assetPath, name string) (string, error) {
	if name == "" {
		name = assets.DefaultStyleName
	}
	resolver, err := assets.NewResolver(assetPath)
	if err != nil {
		return "", err
	}
	return resolver.LoadStyle(name)
}

// WorkDir returns the directory holding session directories.
func (s *Service) WorkDir() string {
	return s.root
}

// UploadTemplate stores a .docx template for the session, replacing any
// previous template, and reports the merge fields it uses.
func (s *Service) UploadTemplate(ctx context.Context, sessionID, filename string, r io.Reader) (res *UploadResult, err error) {
	defer recoverPanic(&err)

	if !fileutil.HasExtension(filename, TemplateExtensions...) {
		return nil, fmt.Errorf("%w: %q is not a Word document", ErrInvalidFileType, filename)
	}
	path, name, err := s.receive(ctx, sessionID, slotTemplate, filename, r, ErrMalformedTemplate)
	if err != nil {
		return nil, err
	}

	doc, err := docx.Open(path)
	if err != nil {
		s.discard(sessionID, path)
		return nil, fmt.Errorf("%w: %v", ErrMalformedTemplate, err)
	}
	found := fields.Find(doc.Blocks())

	if err := s.store.ReplaceTemplate(sessionID, path, name, found); err != nil {
		return nil, err
	}
	s.logger.Info("template uploaded", "session", sessionID, "file", name, "fields", len(found))
	return &UploadResult{Filename: name, Fields: found}, nil
}

// UploadData stores an .xlsx workbook for the session, replacing any
// previous one, and returns its headers with a preview of the first rows.
func (s *Service) UploadData(ctx context.Context, sessionID, filename string, r io.Reader) (res *UploadResult, err error) {
	defer recoverPanic(&err)

	if !fileutil.HasExtension(filename, DataExtensions...) {
		return nil, fmt.Errorf("%w: %q is not an Excel workbook", ErrInvalidFileType, filename)
	}
	path, name, err := s.receive(ctx, sessionID, slotData, filename, r, ErrMalformedSpreadsheet)
	if err != nil {
		return nil, err
	}

	sample, err := tabular.Preview(path, tabular.DefaultPreviewRows)
	if err != nil {
		s.discard(sessionID, path)
		return nil, classifyTableError(err)
	}

	if err := s.store.ReplaceData(sessionID, path, name, sample.Headers); err != nil {
		return nil, err
	}
	s.logger.Info("data uploaded", "session", sessionID, "file", name, "rows", sample.Total)

	preview := make([]map[string]string, len(sample.Rows))
	for i, row := range sample.Rows {
		preview[i] = row
	}
	return &UploadResult{
		Filename:  name,
		Headers:   sample.Headers,
		Preview:   preview,
		TotalRows: sample.Total,
	}, nil
}

// receive writes an upload to a fresh path in the session directory.
// Write failures are reported with the slot's malformed sentinel.
func (s *Service) receive(ctx context.Context, sessionID, slot, filename string, r io.Reader, malformed error) (path, name string, err error) {
	if err := ctx.Err(); err != nil {
		return "", "", fmt.Errorf("%w: %v", malformed, err)
	}
	name = fileutil.SecureName(filename)
	if name == "" {
		return "", "", fmt.Errorf("%w: unusable file name %q", ErrInvalidFileType, filename)
	}
	if _, err := s.store.GetOrCreate(sessionID); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return "", "", err
		}
		return "", "", fmt.Errorf("%w: %v", malformed, err)
	}
	path, err = s.store.AllocPath(sessionID, slot+"_"+name)
	if err != nil {
		return "", "", err
	}

	if err := writeFile(path, r); err != nil {
		s.discard(sessionID, path)
		return "", "", fmt.Errorf("%w: saving upload: %v", malformed, err)
	}
	return path, name, nil
}

// writeFile copies r to a new file at path.
func writeFile(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) // #nosec G304 -- allocated by the session store
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// classifyTableError maps loader errors to Service sentinels.
func classifyTableError(err error) error {
	if errors.Is(err, tabular.ErrNoWorksheet) {
		return fmt.Errorf("%w: %v", ErrNoWorksheetFound, err)
	}
	return fmt.Errorf("%w: %v", ErrMalformedSpreadsheet, err)
}

// Merge combines the session's template and data into Word or PDF
// documents. On success the outputs replace those of the previous merge;
// on failure the previous outputs stay and partial files are removed.
func (s *Service) Merge(ctx context.Context, sessionID string, req MergeRequest) (res *MergeResult, err error) {
	defer recoverPanic(&err)

	format := FormatWord
	if req.Format != "" {
		if format, err = ParseFormat(string(req.Format)); err != nil {
			return nil, err
		}
	}

	sess, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.TemplatePath == "" || sess.DataPath == "" {
		return nil, ErrMissingTemplateOrData
	}

	tmpl, err := docx.Open(sess.TemplatePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTemplate, err)
	}
	table, err := tabular.Load(sess.DataPath)
	if err != nil {
		return nil, classifyTableError(err)
	}

	dir, err := s.store.AllocDir(sessionID, "merge")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}

	outputs, err := s.produce(ctx, tmpl, table, dir, format, req.MultipleFiles)
	if err != nil {
		s.discard(sessionID, dir)
		return nil, err
	}
	if err := s.store.ReplaceOutputs(sessionID, dir, outputs); err != nil {
		s.discard(sessionID, dir)
		return nil, err
	}

	names := make([]string, len(outputs))
	for i, o := range outputs {
		names[i] = o.Filename
	}
	s.logger.Info("merge completed",
		"session", sessionID,
		"format", string(format),
		"records", len(table.Records),
		"files", len(names))
	return &MergeResult{Files: names}, nil
}

// produce assembles the documents in dir and converts them when PDF is
// requested.
func (s *Service) produce(ctx context.Context, tmpl *docx.Document, table *tabular.Table, dir string, format Format, multiple bool) ([]Output, error) {
	var docs []Assembled
	if multiple {
		all, err := s.assembler.PerRecord(tmpl, table, dir)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
		}
		docs = all
	} else {
		one, err := s.assembler.Combined(tmpl, table, dir)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
		}
		docs = []Assembled{one}
	}

	outputs := make([]Output, len(docs))
	if format == FormatWord {
		for i, d := range docs {
			outputs[i] = Output{Filename: d.Base + format.extension(), Path: d.Path, ContentType: format.contentType()}
		}
		return outputs, nil
	}

	jobs := make([]ConvertJob, len(docs))
	for i, d := range docs {
		jobs[i] = ConvertJob{DocxPath: d.Path, PDFPath: filepath.Join(dir, d.Base+format.extension())}
	}
	paths, err := s.converter.ConvertAll(ctx, jobs)
	if err != nil {
		return nil, err
	}
	for i, d := range docs {
		outputs[i] = Output{Filename: d.Base + format.extension(), Path: paths[i], ContentType: format.contentType()}
	}
	return outputs, nil
}

// Download reads a registered output of the session.
func (s *Service) Download(sessionID, filename string) (dl *Download, err error) {
	defer recoverPanic(&err)

	out, err := s.lookup(sessionID, filename)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(out.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFileNotFound, filename, err)
	}
	return &Download{Filename: out.Filename, ContentType: out.ContentType, Data: data}, nil
}

func (s *Service) lookup(sessionID, filename string) (Output, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return Output{}, fmt.Errorf("%w: %s", ErrFileNotFound, filename)
	}
	for _, o := range sess.Outputs {
		if o.Filename == filename {
			return o, nil
		}
	}
	return Output{}, fmt.Errorf("%w: %s", ErrFileNotFound, filename)
}

// Archive writes a zip of every output of the last merge to w. Fails with
// ErrFileNotFound, before anything is written, when there are no outputs
// or one of them vanished.
func (s *Service) Archive(sessionID string, w io.Writer) (err error) {
	defer recoverPanic(&err)

	sess, err := s.store.Get(sessionID)
	if err != nil || len(sess.Outputs) == 0 {
		return fmt.Errorf("%w: no outputs to archive", ErrFileNotFound)
	}
	for _, o := range sess.Outputs {
		if !fileutil.FileExists(o.Path) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, o.Filename)
		}
	}

	zw := zip.NewWriter(w)
	for _, o := range sess.Outputs {
		if err := addToZip(zw, o); err != nil {
			_ = zw.Close()
			return fmt.Errorf("%w: %s: %v", ErrFileNotFound, o.Filename, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("%w: writing archive: %v", ErrFileNotFound, err)
	}
	return nil
}

func addToZip(zw *zip.Writer, o Output) error {
	f, err := os.Open(o.Path) // #nosec G304 -- registered output
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	dst, err := zw.CreateHeader(&zip.FileHeader{Name: o.Filename, Method: zip.Deflate})
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, f)
	return err
}

// Status reports what the session holds. An unknown session reports an
// empty status.
func (s *Service) Status(sessionID string) (st *Status, err error) {
	defer recoverPanic(&err)

	st = &Status{OutputFiles: []string{}}
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return st, nil
	}
	st.HasTemplate = sess.TemplatePath != ""
	st.HasData = sess.DataPath != ""
	for _, o := range sess.Outputs {
		st.OutputFiles = append(st.OutputFiles, o.Filename)
	}
	return st, nil
}

// Clear deletes every file of the session and forgets it.
func (s *Service) Clear(sessionID string) (err error) {
	defer recoverPanic(&err)
	return s.store.Clear(sessionID)
}

// Sessions returns the number of live sessions.
func (s *Service) Sessions() int {
	return s.store.Len()
}

// Close releases browsers, clears every session and removes the work
// directory when the Service created it.
func (s *Service) Close() error {
	errs := []error{s.converter.Close()}
	s.store.Close()
	if s.ownsRoot {
		if err := os.RemoveAll(s.root); err != nil {
			errs = append(errs, fmt.Errorf("removing work directory: %w", err))
		}
	}
	return errors.Join(errs...)
}

// discard removes files allocated for a failed operation.
func (s *Service) discard(sessionID string, paths ...string) {
	if err := s.store.Discard(sessionID, paths...); err != nil {
		s.logger.Debug("discard skipped", "session", sessionID, "error", err)
	}
}
