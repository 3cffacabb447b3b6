package main

// Notes:
// - Handlers are exercised through the chi router with httptest; the
//   listener path is covered once through serve() on a loopback port
// - The renderer chain is unavailable, so PDF merges map to 503

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	mailmerge "github.com/alnah/go-mailmerge"
	"github.com/alnah/go-mailmerge/internal/docx/docxtest"
	"github.com/alnah/go-mailmerge/internal/tabular/tabulartest"
)

func newTestRouter(t *testing.T, maxBody int64) http.Handler {
	t.Helper()

	svc, err := mailmerge.New(
		mailmerge.WithWorkDir(t.TempDir()),
		mailmerge.WithClock(fixedNow),
		mailmerge.WithRenderers(unavailableRenderer{}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return newRouter(svc, slog.New(slog.DiscardHandler), maxBody)
}

// do sends a request with an optional session header and returns the
// recorded response.
func do(t *testing.T, h http.Handler, method, target, session string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if session != "" {
		req.Header.Set(sessionHeader, session)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func uploadBody(t *testing.T, filename string, data []byte) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func upload(t *testing.T, h http.Handler, kind, session, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := uploadBody(t, filename, data)
	return do(t, h, http.MethodPost, "/api/upload/"+kind, session, body, ct)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return m
}

func spreadsheetBytes(t *testing.T) []byte {
	t.Helper()
	return readFile(t, tabulartest.Write(t, t.TempDir(), "people.xlsx", peopleRows()...))
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// prepareSession uploads the letter and the spreadsheet and returns the
// minted session id.
func prepareSession(t *testing.T, h http.Handler) string {
	t.Helper()

	rec := upload(t, h, "template", "", "letter.docx", docxtest.Bytes(t, letterParas()...))
	if rec.Code != http.StatusOK {
		t.Fatalf("template upload = %d: %s", rec.Code, rec.Body)
	}
	sid := rec.Header().Get(sessionHeader)
	if sid == "" {
		t.Fatal("no session id minted")
	}

	rec = upload(t, h, "data", sid, "people.xlsx", spreadsheetBytes(t))
	if rec.Code != http.StatusOK {
		t.Fatalf("data upload = %d: %s", rec.Code, rec.Body)
	}
	return sid
}

// ---------------------------------------------------------------------------
// TestRouter_Health
// ---------------------------------------------------------------------------

func TestRouter_Health(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestRouter(t, 1<<20), http.MethodGet, "/health", "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode(t, rec)["status"]; got != "healthy" {
		t.Errorf("status field = %v, want healthy", got)
	}
}

// ---------------------------------------------------------------------------
// TestRouter_Upload
// ---------------------------------------------------------------------------

func TestRouter_UploadTemplate(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, 1<<20)
	rec := upload(t, h, "template", "", "letter.docx", docxtest.Bytes(t, letterParas()...))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	body := decode(t, rec)
	if body["success"] != true {
		t.Errorf("success = %v", body["success"])
	}
	if body["sessionId"] == "" || body["sessionId"] != rec.Header().Get(sessionHeader) {
		t.Errorf("sessionId = %v, header %q", body["sessionId"], rec.Header().Get(sessionHeader))
	}
	if !strings.Contains(rec.Header().Get("Set-Cookie"), sessionCookie+"=") {
		t.Errorf("Set-Cookie = %q", rec.Header().Get("Set-Cookie"))
	}
	fields, _ := body["fields"].([]any)
	if len(fields) != 2 {
		t.Errorf("fields = %v, want first_name and last_name", body["fields"])
	}
}

func TestRouter_UploadData(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, 1<<20)
	rec := upload(t, h, "data", "s1", "people.xlsx", spreadsheetBytes(t))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	body := decode(t, rec)
	if body["sessionId"] != "s1" {
		t.Errorf("sessionId = %v, want s1 from header", body["sessionId"])
	}
	if body["totalRows"] != float64(2) {
		t.Errorf("totalRows = %v, want 2", body["totalRows"])
	}
}

func TestRouter_UploadErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		kind     string
		filename string
		data     []byte
		maxBody  int64
		wantCode int
		wantKind string
	}{
		{name: "unknown kind", kind: "image", filename: "a.png", data: []byte("x"), maxBody: 1 << 20, wantCode: 400, wantKind: "InvalidFileType"},
		{name: "wrong extension", kind: "template", filename: "a.pdf", data: []byte("x"), maxBody: 1 << 20, wantCode: 400, wantKind: "InvalidFileType"},
		{name: "corrupt template", kind: "template", filename: "a.docx", data: []byte("not a zip"), maxBody: 1 << 20, wantCode: 400, wantKind: "MalformedTemplate"},
		{name: "corrupt spreadsheet", kind: "data", filename: "a.xlsx", data: []byte("not a zip"), maxBody: 1 << 20, wantCode: 400, wantKind: "MalformedSpreadsheet"},
		{name: "too large", kind: "template", filename: "a.docx", data: bytes.Repeat([]byte("x"), 4096), maxBody: 512, wantCode: 413, wantKind: "InvalidFileType"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := upload(t, newTestRouter(t, tt.maxBody), tt.kind, "s1", tt.filename, tt.data)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body)
			}
			body := decode(t, rec)
			if body["success"] != false || body["kind"] != tt.wantKind {
				t.Errorf("body = %v, want failure of kind %s", body, tt.wantKind)
			}
		})
	}
}

func TestRouter_UploadMissingField(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestRouter(t, 1<<20), http.MethodPost, "/api/upload/template", "s1",
		strings.NewReader("a=b"), "application/x-www-form-urlencoded")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// TestRouter_MergeFlow
// ---------------------------------------------------------------------------

func TestRouter_MergeFlow(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, 1<<20)
	sid := prepareSession(t, h)

	rec := do(t, h, http.MethodPost, "/api/merge", sid,
		strings.NewReader(`{"outputFormat":"word","multipleFiles":true}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("merge = %d: %s", rec.Code, rec.Body)
	}
	files, _ := decode(t, rec)["files"].([]any)
	if len(files) != 2 {
		t.Fatalf("files = %v, want 2", files)
	}

	name := files[0].(string)
	rec = do(t, h, http.MethodGet, "/api/download/"+url.PathEscape(name), sid, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("download = %d: %s", rec.Code, rec.Body)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment") || !strings.Contains(cd, name) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Error("download body is not a zip container")
	}

	rec = do(t, h, http.MethodGet, "/api/download-all", sid, nil, "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/zip" {
		t.Errorf("download-all = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}

	rec = do(t, h, http.MethodGet, "/api/status", sid, nil, "")
	status := decode(t, rec)
	if status["hasTemplate"] != true || status["hasData"] != true {
		t.Errorf("status = %v", status)
	}
	if out, _ := status["outputFiles"].([]any); len(out) != 2 {
		t.Errorf("outputFiles = %v, want 2", status["outputFiles"])
	}

	if rec = do(t, h, http.MethodPost, "/api/clear", sid, nil, ""); rec.Code != http.StatusOK {
		t.Errorf("clear = %d: %s", rec.Code, rec.Body)
	}
	if rec = do(t, h, http.MethodPost, "/api/clear", sid, nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("second clear = %d, want 404", rec.Code)
	}
}

func TestRouter_SessionCookie(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, 1<<20)
	rec := upload(t, h, "template", "", "letter.docx", docxtest.Bytes(t, letterParas()...))
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("no cookie set")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.AddCookie(cookies[0])
	got := httptest.NewRecorder()
	h.ServeHTTP(got, req)

	if decode(t, got)["hasTemplate"] != true {
		t.Errorf("status through cookie = %s", got.Body)
	}
}

func TestRouter_MergeErrors(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, 1<<20)
	sid := prepareSession(t, h)

	tests := []struct {
		name     string
		session  string
		body     string
		wantCode int
		wantKind string
	}{
		{name: "no session", body: `{}`, wantCode: 404, wantKind: "SessionNotFound"},
		{name: "pdf unavailable", session: sid, body: `{"outputFormat":"pdf"}`, wantCode: 503, wantKind: "ConversionEngineUnavailable"},
		{name: "unknown format", session: sid, body: `{"outputFormat":"odt"}`, wantCode: 400, wantKind: "InvalidFileType"},
		{name: "bad json", session: sid, body: `{`, wantCode: 400, wantKind: "Internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/merge", tt.session, strings.NewReader(tt.body), "application/json")
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body)
			}
			if got := decode(t, rec)["kind"]; got != tt.wantKind {
				t.Errorf("kind = %v, want %s", got, tt.wantKind)
			}
		})
	}
}

func TestRouter_MergeEmptyBodyDefaultsToWord(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, 1<<20)
	sid := prepareSession(t, h)

	rec := do(t, h, http.MethodPost, "/api/merge", sid, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("merge = %d: %s", rec.Code, rec.Body)
	}
	files, _ := decode(t, rec)["files"].([]any)
	if len(files) != 1 || !strings.HasSuffix(files[0].(string), ".docx") {
		t.Errorf("files = %v, want one combined .docx", files)
	}
}

func TestRouter_DownloadNotFound(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, 1<<20)
	for _, target := range []string{"/api/download/nope.docx", "/api/download-all"} {
		rec := do(t, h, http.MethodGet, target, "ghost", nil, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", target, rec.Code)
		}
		if got := decode(t, rec)["kind"]; got != "FileNotFound" {
			t.Errorf("GET %s kind = %v", target, got)
		}
	}
}

func TestRouter_StatusUnknownSession(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestRouter(t, 1<<20), http.MethodGet, "/api/status", "", nil, "")
	body := decode(t, rec)
	if rec.Code != http.StatusOK || body["hasTemplate"] != false {
		t.Errorf("status = %d %v", rec.Code, body)
	}
	if out, ok := body["outputFiles"].([]any); !ok || len(out) != 0 {
		t.Errorf("outputFiles = %v, want empty list", body["outputFiles"])
	}
}

// ---------------------------------------------------------------------------
// TestStatusFor
// ---------------------------------------------------------------------------

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind mailmerge.ErrorKind
		want int
	}{
		{mailmerge.KindInvalidFileType, http.StatusBadRequest},
		{mailmerge.KindMalformedTemplate, http.StatusBadRequest},
		{mailmerge.KindNoWorksheetFound, http.StatusBadRequest},
		{mailmerge.KindMalformedSpreadsheet, http.StatusBadRequest},
		{mailmerge.KindMissingTemplateOrData, http.StatusBadRequest},
		{mailmerge.KindSessionNotFound, http.StatusNotFound},
		{mailmerge.KindFileNotFound, http.StatusNotFound},
		{mailmerge.KindConversionEngineUnavailable, http.StatusServiceUnavailable},
		{mailmerge.KindConversionFailed, http.StatusInternalServerError},
		{mailmerge.KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.kind); got != tt.want {
			t.Errorf("statusFor(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestSessionFrom(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(sessionHeader, "header-id")
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "cookie-id"})
	if got := sessionFrom(req); got != "header-id" {
		t.Errorf("sessionFrom() = %q, want header first", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(sessionHeader, strings.Repeat("x", maxSessionIDLen+1))
	if got := sessionFrom(req); got != "" {
		t.Errorf("sessionFrom(overlong) = %q, want empty", got)
	}
}

// ---------------------------------------------------------------------------
// TestServe / TestRunServeCmd
// ---------------------------------------------------------------------------

func TestServe_ShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := &http.Server{Handler: newTestRouter(t, 1<<20), ReadHeaderTimeout: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, srv, ln, slog.New(slog.DiscardHandler)) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve() did not return after cancel")
	}
}

func TestRunServeCmd(t *testing.T) {
	t.Parallel()

	t.Run("stops with context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		env, _, stderr := newTestEnv()
		args := []string{"--addr", "127.0.0.1:0", "--work-dir", t.TempDir(), "-q"}
		if code := runServeCmd(ctx, args, env); code != ExitSuccess {
			t.Errorf("runServeCmd() = %d, want 0\nstderr: %s", code, stderr)
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		t.Parallel()

		env, _, stderr := newTestEnv()
		if code := runServeCmd(context.Background(), []string{"--max-sessions=-1"}, env); code != ExitUsage {
			t.Errorf("runServeCmd() = %d, want %d", code, ExitUsage)
		}
		if !strings.Contains(stderr.String(), "sessions.max") {
			t.Errorf("stderr = %q", stderr)
		}
	})

	t.Run("unknown flag", func(t *testing.T) {
		t.Parallel()

		env, _, _ := newTestEnv()
		if code := runServeCmd(context.Background(), []string{"--port", "80"}, env); code != ExitUsage {
			t.Errorf("runServeCmd() = %d, want %d", code, ExitUsage)
		}
	})
}
