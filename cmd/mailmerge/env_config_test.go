package main

// Notes:
// - Tests use t.Setenv() which prevents t.Parallel()
// - Invalid numbers and durations are ignored, not reported

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/alnah/go-mailmerge/internal/config"
)

// ---------------------------------------------------------------------------
// TestLoadEnvConfig
// ---------------------------------------------------------------------------

func TestLoadEnvConfig(t *testing.T) {
	t.Setenv("MAILMERGE_CONFIG", "/etc/mailmerge.yaml")
	t.Setenv("MAILMERGE_ADDR", ":8080")
	t.Setenv("MAILMERGE_TIMEOUT", "2m")
	t.Setenv("MAILMERGE_ENGINES", "pandoc, chrome,")
	t.Setenv("MAILMERGE_WORKERS", "3")
	t.Setenv("MAILMERGE_STYLE", "letter")
	t.Setenv("MAILMERGE_ASSET_PATH", "/assets")
	t.Setenv("MAILMERGE_PAGE_SIZE", "letter")
	t.Setenv("MAILMERGE_PANDOC_BIN", "/opt/pandoc")
	t.Setenv("MAILMERGE_PANDOC_ENGINE", "weasyprint")
	t.Setenv("MAILMERGE_MAX_SESSIONS", "10")
	t.Setenv("MAILMERGE_MAX_UPLOAD_MB", "5")
	t.Setenv("MAILMERGE_WORK_DIR", "/srv/merge")

	want := &envConfig{
		ConfigPath:  "/etc/mailmerge.yaml",
		Addr:        ":8080",
		Timeout:     2 * time.Minute,
		Engines:     []string{"pandoc", "chrome"},
		Workers:     3,
		Style:       "letter",
		AssetPath:   "/assets",
		PageSize:    "letter",
		PandocBin:   "/opt/pandoc",
		PDFEngine:   "weasyprint",
		MaxSessions: 10,
		MaxUploadMB: 5,
		WorkDir:     "/srv/merge",
	}
	if diff := cmp.Diff(want, loadEnvConfig()); diff != "" {
		t.Errorf("loadEnvConfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadEnvConfig_InvalidValuesIgnored(t *testing.T) {
	t.Setenv("MAILMERGE_TIMEOUT", "soon")
	t.Setenv("MAILMERGE_WORKERS", "-2")
	t.Setenv("MAILMERGE_MAX_SESSIONS", "many")
	t.Setenv("MAILMERGE_MAX_UPLOAD_MB", "0")

	cfg := loadEnvConfig()
	if cfg.Timeout != 0 {
		t.Errorf("Timeout = %v, want 0", cfg.Timeout)
	}
	if cfg.Workers != 0 || cfg.MaxSessions != 0 || cfg.MaxUploadMB != 0 {
		t.Errorf("numbers = %d/%d/%d, want zeros", cfg.Workers, cfg.MaxSessions, cfg.MaxUploadMB)
	}
}

// ---------------------------------------------------------------------------
// TestWarnUnknownEnvVars
// ---------------------------------------------------------------------------

func TestWarnUnknownEnvVars(t *testing.T) {
	t.Setenv("MAILMERGE_TIMOUT", "30s")
	t.Setenv("MAILMERGE_ADDR", ":1")

	var buf bytes.Buffer
	warnUnknownEnvVars(&buf)

	out := buf.String()
	if !strings.Contains(out, "MAILMERGE_TIMOUT") {
		t.Errorf("warnings = %q, want MAILMERGE_TIMOUT", out)
	}
	if strings.Contains(out, "MAILMERGE_ADDR") {
		t.Errorf("warnings = %q, known variable reported", out)
	}
}

// ---------------------------------------------------------------------------
// TestApplyEnvConfig
// ---------------------------------------------------------------------------

func TestApplyEnvConfig(t *testing.T) {
	t.Parallel()

	t.Run("set values override file", func(t *testing.T) {
		t.Parallel()

		cfg := config.DefaultConfig()
		applyEnvConfig(&envConfig{
			Addr:        ":9000",
			Timeout:     time.Second,
			Engines:     []string{"pandoc"},
			PageSize:    "legal",
			PandocBin:   "pandoc3",
			MaxSessions: 7,
			MaxUploadMB: 2,
			WorkDir:     "/w",
		}, cfg)

		if cfg.Server.Addr != ":9000" || cfg.Server.MaxUploadMB != 2 {
			t.Errorf("server = %+v", cfg.Server)
		}
		if cfg.Render.Timeout != time.Second || cfg.Render.Pandoc.Binary != "pandoc3" {
			t.Errorf("render = %+v", cfg.Render)
		}
		if diff := cmp.Diff([]string{"pandoc"}, cfg.Render.Engines); diff != "" {
			t.Errorf("engines mismatch (-want +got):\n%s", diff)
		}
		if cfg.Page.Size != "legal" {
			t.Errorf("Page.Size = %q, want legal", cfg.Page.Size)
		}
		if cfg.Sessions.Max != 7 || cfg.Sessions.WorkDir != "/w" {
			t.Errorf("sessions = %+v", cfg.Sessions)
		}
	})

	t.Run("empty env keeps file values", func(t *testing.T) {
		t.Parallel()

		cfg := config.DefaultConfig()
		applyEnvConfig(&envConfig{}, cfg)
		if diff := cmp.Diff(config.DefaultConfig(), cfg); diff != "" {
			t.Errorf("config changed (-want +got):\n%s", diff)
		}
	})
}
