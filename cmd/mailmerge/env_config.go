package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alnah/go-mailmerge/internal/config"
)

// envConfig holds configuration from environment variables.
// Provides container-friendly overrides without requiring YAML files.
type envConfig struct {
	// Tier 1 - Essential
	ConfigPath string        // MAILMERGE_CONFIG: config file path
	Addr       string        // MAILMERGE_ADDR: listen address
	Timeout    time.Duration // MAILMERGE_TIMEOUT: per renderer attempt

	// Tier 2 - Rendering
	Engines   []string // MAILMERGE_ENGINES: comma-separated renderer order
	Workers   int      // MAILMERGE_WORKERS: concurrent conversions
	Style     string   // MAILMERGE_STYLE: stylesheet name
	AssetPath string   // MAILMERGE_ASSET_PATH: custom asset directory
	PageSize  string   // MAILMERGE_PAGE_SIZE: a4, letter, legal
	PandocBin string   // MAILMERGE_PANDOC_BIN: pandoc binary
	PDFEngine string   // MAILMERGE_PANDOC_ENGINE: pandoc --pdf-engine

	// Tier 3 - Server limits
	MaxSessions int    // MAILMERGE_MAX_SESSIONS: live sessions
	MaxUploadMB int    // MAILMERGE_MAX_UPLOAD_MB: request body limit
	WorkDir     string // MAILMERGE_WORK_DIR: session files directory
}

// knownEnvVars lists valid MAILMERGE_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	// Tier 1 - Essential
	"MAILMERGE_CONFIG":  true,
	"MAILMERGE_ADDR":    true,
	"MAILMERGE_TIMEOUT": true,
	// Tier 2 - Rendering
	"MAILMERGE_ENGINES":       true,
	"MAILMERGE_WORKERS":       true,
	"MAILMERGE_STYLE":         true,
	"MAILMERGE_ASSET_PATH":    true,
	"MAILMERGE_PAGE_SIZE":     true,
	"MAILMERGE_PANDOC_BIN":    true,
	"MAILMERGE_PANDOC_ENGINE": true,
	// Tier 3 - Server limits
	"MAILMERGE_MAX_SESSIONS":  true,
	"MAILMERGE_MAX_UPLOAD_MB": true,
	"MAILMERGE_WORK_DIR":      true,
	// Diagnostics
	"MAILMERGE_CONTAINER": true,
}

// loadEnvConfig reads configuration from environment variables.
// Unparsable numbers and durations are ignored.
func loadEnvConfig() *envConfig {
	cfg := &envConfig{
		ConfigPath: os.Getenv("MAILMERGE_CONFIG"),
		Addr:       os.Getenv("MAILMERGE_ADDR"),
		Style:      os.Getenv("MAILMERGE_STYLE"),
		AssetPath:  os.Getenv("MAILMERGE_ASSET_PATH"),
		PageSize:   os.Getenv("MAILMERGE_PAGE_SIZE"),
		PandocBin:  os.Getenv("MAILMERGE_PANDOC_BIN"),
		PDFEngine:  os.Getenv("MAILMERGE_PANDOC_ENGINE"),
		WorkDir:    os.Getenv("MAILMERGE_WORK_DIR"),
	}

	if timeout := os.Getenv("MAILMERGE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}

	if engines := os.Getenv("MAILMERGE_ENGINES"); engines != "" {
		for _, e := range strings.Split(engines, ",") {
			if e = strings.TrimSpace(e); e != "" {
				cfg.Engines = append(cfg.Engines, e)
			}
		}
	}

	cfg.Workers = positiveIntEnv("MAILMERGE_WORKERS")
	cfg.MaxSessions = positiveIntEnv("MAILMERGE_MAX_SESSIONS")
	cfg.MaxUploadMB = positiveIntEnv("MAILMERGE_MAX_UPLOAD_MB")

	return cfg
}

// positiveIntEnv returns the variable as an int, or 0 when unset or not
// a positive integer.
func positiveIntEnv(name string) int {
	v := os.Getenv(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// warnUnknownEnvVars logs warnings for unrecognized MAILMERGE_* variables.
// Helps catch typos like MAILMERGE_TIMOUT.
func warnUnknownEnvVars(w io.Writer) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "MAILMERGE_") {
			name := strings.SplitN(env, "=", 2)[0]
			if !knownEnvVars[name] {
				fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
			}
		}
	}
}

// applyEnvConfig applies set environment variables over config file values.
// Flags are applied afterwards, giving: flags > env vars > config file > defaults.
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	if env.Addr != "" {
		cfg.Server.Addr = env.Addr
	}
	if env.Timeout > 0 {
		cfg.Render.Timeout = env.Timeout
	}

	if len(env.Engines) > 0 {
		cfg.Render.Engines = env.Engines
	}
	if env.Workers > 0 {
		cfg.Render.Workers = env.Workers
	}
	if env.Style != "" {
		cfg.Render.Style = env.Style
	}
	if env.AssetPath != "" {
		cfg.Assets.BasePath = env.AssetPath
	}
	if env.PageSize != "" {
		cfg.Page.Size = env.PageSize
	}
	if env.PandocBin != "" {
		cfg.Render.Pandoc.Binary = env.PandocBin
	}
	if env.PDFEngine != "" {
		cfg.Render.Pandoc.Engine = env.PDFEngine
	}

	if env.MaxSessions > 0 {
		cfg.Sessions.Max = env.MaxSessions
	}
	if env.MaxUploadMB > 0 {
		cfg.Server.MaxUploadMB = env.MaxUploadMB
	}
	if env.WorkDir != "" {
		cfg.Sessions.WorkDir = env.WorkDir
	}
}
