package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	flag "github.com/spf13/pflag"

	mailmerge "github.com/alnah/go-mailmerge"
)

const (
	sessionHeader     = "X-Session-ID"
	sessionCookie     = "mailmerge_session"
	maxSessionIDLen   = 128
	maxJSONBody       = 1 << 20
	archiveName       = "mailmerge_outputs.zip"
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 60 * time.Second
)

// runServeCmd runs the HTTP adapter until ctx is cancelled.
func runServeCmd(ctx context.Context, args []string, env *Environment) int {
	f, err := parseServeFlags(args)
	if errors.Is(err, flag.ErrHelp) {
		printServeUsage(env.Stdout)
		return ExitSuccess
	}
	if err != nil {
		if !errors.Is(err, ErrUsage) {
			err = fmt.Errorf("%w: %v", ErrUsage, err)
		}
		fmt.Fprintf(env.Stderr, "Error: %v\n\n", err)
		printServeUsage(env.Stderr)
		return ExitUsage
	}

	warnUnknownEnvVars(env.Stderr)

	cfg, err := resolveConfig(f.common.config, loadEnvConfig())
	if err == nil {
		applyServeFlags(f, cfg)
		err = cfg.Validate()
	}
	if err != nil {
		return reportError(env.Stderr, err, cfg, configName(f.common.config))
	}

	logger := newLogger(env.Stderr, f.common, slog.LevelInfo)
	svc, err := env.NewService(serviceOptions(cfg, logger, env.Now)...)
	if err != nil {
		return reportError(env.Stderr, err, cfg, configName(f.common.config))
	}
	defer func() { _ = svc.Close() }()

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return reportError(env.Stderr, fmt.Errorf("listening on %s: %w", cfg.Server.Addr, err), cfg, "")
	}

	srv := &http.Server{
		Handler:           newRouter(svc, logger, int64(cfg.Server.MaxUploadMB)<<20),
		ReadHeaderTimeout: readHeaderTimeout,
		// A PDF merge may run every renderer of the chain to its timeout.
		WriteTimeout: time.Duration(len(cfg.Render.Engines)+1) * cfg.Render.Timeout,
		IdleTimeout:  idleTimeout,
	}
	if err := serve(ctx, srv, ln, logger); err != nil {
		return reportError(env.Stderr, err, cfg, "")
	}
	return ExitSuccess
}

// serve runs srv on ln and shuts it down gracefully when ctx is done.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// api adapts Service methods to HTTP handlers.
type api struct {
	svc     *mailmerge.Service
	logger  *slog.Logger
	maxBody int64
}

// newRouter builds the HTTP routes of the service.
func newRouter(svc *mailmerge.Service, logger *slog.Logger, maxBody int64) http.Handler {
	a := &api{svc: svc, logger: logger, maxBody: maxBody}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", a.health)
	r.Route("/api", func(r chi.Router) {
		r.Post("/upload/{kind}", a.upload)
		r.Post("/merge", a.merge)
		r.Get("/download/{filename}", a.download)
		r.Get("/download-all", a.downloadAll)
		r.Get("/status", a.status)
		r.Post("/clear", a.clear)
	})
	return r
}

// requestLogger logs one record per request.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

type uploadResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId"`
	*mailmerge.UploadResult
}

type mergeResponse struct {
	Success bool `json:"success"`
	*mailmerge.MergeResult
}

type statusResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId,omitempty"`
	*mailmerge.Status
}

type okResponse struct {
	Success bool `json:"success"`
}

func (a *api) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (a *api) upload(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	if kind != "template" && kind != "data" {
		writeFailure(w, fmt.Errorf("%w: unknown upload kind %q", mailmerge.ErrInvalidFileType, kind))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.maxBody)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeFailureStatus(w, http.StatusRequestEntityTooLarge,
				fmt.Errorf("%w: upload exceeds %d bytes", mailmerge.ErrInvalidFileType, tooLarge.Limit))
			return
		}
		writeFailure(w, fmt.Errorf("%w: multipart field \"file\": %v", mailmerge.ErrInvalidFileType, err))
		return
	}
	defer func() {
		_ = file.Close()
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	sid := sessionFrom(r)
	if sid == "" {
		sid = uuid.NewString()
	}
	setSession(w, sid)

	var res *mailmerge.UploadResult
	if kind == "template" {
		res, err = a.svc.UploadTemplate(r.Context(), sid, header.Filename, file)
	} else {
		res, err = a.svc.UploadData(r.Context(), sid, header.Filename, file)
	}
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{Success: true, SessionID: sid, UploadResult: res})
}

func (a *api) merge(w http.ResponseWriter, r *http.Request) {
	var req mailmerge.MergeRequest
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeFailureStatus(w, http.StatusBadRequest, fmt.Errorf("decoding merge request: %w", err))
		return
	}

	res, err := a.svc.Merge(r.Context(), sessionFrom(r), req)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mergeResponse{Success: true, MergeResult: res})
}

func (a *api) download(w http.ResponseWriter, r *http.Request) {
	dl, err := a.svc.Download(sessionFrom(r), chi.URLParam(r, "filename"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeAttachment(w, dl.Filename, dl.ContentType, dl.Data)
}

func (a *api) downloadAll(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := a.svc.Archive(sessionFrom(r), &buf); err != nil {
		writeFailure(w, err)
		return
	}
	writeAttachment(w, archiveName, "application/zip", buf.Bytes())
}

func (a *api) status(w http.ResponseWriter, r *http.Request) {
	sid := sessionFrom(r)
	st, err := a.svc.Status(sid)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Success: true, SessionID: sid, Status: st})
}

func (a *api) clear(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Clear(sessionFrom(r)); err != nil {
		writeFailure(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, okResponse{Success: true})
}

// sessionFrom returns the session id of the request, header first.
// Overlong ids are ignored.
func sessionFrom(r *http.Request) string {
	id := r.Header.Get(sessionHeader)
	if id == "" {
		if c, err := r.Cookie(sessionCookie); err == nil {
			id = c.Value
		}
	}
	if len(id) > maxSessionIDLen {
		return ""
	}
	return id
}

func setSession(w http.ResponseWriter, id string) {
	w.Header().Set(sessionHeader, id)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAttachment(w http.ResponseWriter, filename, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeFailure(w http.ResponseWriter, err error) {
	writeFailureStatus(w, statusFor(mailmerge.KindOf(err)), err)
}

func writeFailureStatus(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, mailmerge.Failure(err))
}

// statusFor maps an error kind to its HTTP status code.
func statusFor(kind mailmerge.ErrorKind) int {
	switch kind {
	case mailmerge.KindInvalidFileType,
		mailmerge.KindMalformedTemplate,
		mailmerge.KindNoWorksheetFound,
		mailmerge.KindMalformedSpreadsheet,
		mailmerge.KindMissingTemplateOrData:
		return http.StatusBadRequest
	case mailmerge.KindSessionNotFound, mailmerge.KindFileNotFound:
		return http.StatusNotFound
	case mailmerge.KindConversionEngineUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
