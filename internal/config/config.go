// Package config loads the YAML configuration of the mail-merge service.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/go-mailmerge/internal/assets"
	"github.com/alnah/go-mailmerge/internal/dateutil"
	"github.com/alnah/go-mailmerge/internal/fileutil"
	"github.com/alnah/go-mailmerge/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrInvalidValue    = errors.New("invalid config value")
)

// Field length limits.
const (
	MaxAddrLength    = 256
	MaxPathLength    = 4096
	MaxMarkerLength  = 100
	MaxBinaryLength  = 256
	MaxMarkers       = 20
	MaxUploadMBLimit = 1024
	MaxSessionsLimit = 10000
	MaxWorkers       = 32
	MaxRenderTimeout = 10 * time.Minute
)

// Engine names accepted in render.engines.
const (
	EngineChrome = "chrome"
	EnginePandoc = "pandoc"
)

// Config holds all configuration of the service and CLI.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Sessions SessionsConfig `yaml:"sessions"`
	Render   RenderConfig   `yaml:"render"`
	Page     PageConfig     `yaml:"page"`
	Naming   NamingConfig   `yaml:"naming"`
	Assets   AssetsConfig   `yaml:"assets"`
}

// ServerConfig defines the HTTP adapter.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MaxUploadMB int    `yaml:"maxUploadMB"`
}

// SessionsConfig bounds the session store.
type SessionsConfig struct {
	Max     int    `yaml:"max"`
	WorkDir string `yaml:"workDir"` // Empty = fresh directory under os.TempDir
}

// RenderConfig defines PDF rendering.
type RenderConfig struct {
	Timeout        time.Duration `yaml:"timeout"` // per renderer attempt
	Engines        []string      `yaml:"engines"` // tried in order
	Workers        int           `yaml:"workers"` // 0 = derived from GOMAXPROCS
	Style          string        `yaml:"style"`
	HeadingMarkers []string      `yaml:"headingMarkers"`
	Pandoc         PandocConfig  `yaml:"pandoc"`
}

// PandocConfig defines the secondary renderer process.
type PandocConfig struct {
	Binary string `yaml:"binary"`
	Engine string `yaml:"engine"` // --pdf-engine value
}

// PageConfig defines PDF page settings.
type PageConfig struct {
	Size        string  `yaml:"size"`        // "letter", "a4", "legal"
	Orientation string  `yaml:"orientation"` // "portrait", "landscape"
	Margin      float64 `yaml:"margin"`      // inches
}

// NamingConfig defines output file naming.
type NamingConfig struct {
	Timestamp string `yaml:"timestamp"` // dateutil format or preset
}

// AssetsConfig defines stylesheet loading.
type AssetsConfig struct {
	BasePath string `yaml:"basePath"` // Empty = embedded styles only
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":10000", MaxUploadMB: 50},
		Sessions: SessionsConfig{Max: 50},
		Render: RenderConfig{
			Timeout:        60 * time.Second,
			Engines:        []string{EngineChrome, EnginePandoc},
			Style:          assets.DefaultStyleName,
			HeadingMarkers: []string{"Invoice"},
			Pandoc:         PandocConfig{Binary: "pandoc", Engine: "wkhtmltopdf"},
		},
		Page:   PageConfig{Size: "a4", Orientation: "portrait", Margin: 0.5},
		Naming: NamingConfig{Timestamp: dateutil.DefaultTimestampFormat},
	}
}

// Validate checks ranges and field lengths. Called by LoadConfig, and
// again by the CLI after environment and flag overrides.
func (c *Config) Validate() error {
	if err := validateFieldLength("server.addr", c.Server.Addr, MaxAddrLength); err != nil {
		return err
	}
	if c.Server.MaxUploadMB < 1 || c.Server.MaxUploadMB > MaxUploadMBLimit {
		return fmt.Errorf("%w: server.maxUploadMB must be between 1 and %d, got %d",
			ErrInvalidValue, MaxUploadMBLimit, c.Server.MaxUploadMB)
	}

	if c.Sessions.Max < 1 || c.Sessions.Max > MaxSessionsLimit {
		return fmt.Errorf("%w: sessions.max must be between 1 and %d, got %d",
			ErrInvalidValue, MaxSessionsLimit, c.Sessions.Max)
	}
	if err := validateFieldLength("sessions.workDir", c.Sessions.WorkDir, MaxPathLength); err != nil {
		return err
	}

	if err := c.Render.validate(); err != nil {
		return err
	}

	switch strings.ToLower(c.Page.Size) {
	case "letter", "a4", "legal":
	default:
		return fmt.Errorf("%w: page.size %q (must be letter, a4, or legal)", ErrInvalidValue, c.Page.Size)
	}
	switch strings.ToLower(c.Page.Orientation) {
	case "portrait", "landscape":
	default:
		return fmt.Errorf("%w: page.orientation %q (must be portrait or landscape)", ErrInvalidValue, c.Page.Orientation)
	}

	if c.Naming.Timestamp != "" {
		if _, err := dateutil.Layout(c.Naming.Timestamp); err != nil {
			return fmt.Errorf("%w: naming.timestamp: %v", ErrInvalidValue, err)
		}
	}

	return validateFieldLength("assets.basePath", c.Assets.BasePath, MaxPathLength)
}

func (r *RenderConfig) validate() error {
	if r.Timeout <= 0 || r.Timeout > MaxRenderTimeout {
		return fmt.Errorf("%w: render.timeout must be between 1ns and %s, got %s",
			ErrInvalidValue, MaxRenderTimeout, r.Timeout)
	}

	if len(r.Engines) == 0 {
		return fmt.Errorf("%w: render.engines cannot be empty", ErrInvalidValue)
	}
	seen := make(map[string]bool, len(r.Engines))
	for i, e := range r.Engines {
		name := strings.ToLower(e)
		if name != EngineChrome && name != EnginePandoc {
			return fmt.Errorf("%w: render.engines[%d] %q (must be chrome or pandoc)", ErrInvalidValue, i, e)
		}
		if seen[name] {
			return fmt.Errorf("%w: render.engines[%d] %q listed twice", ErrInvalidValue, i, e)
		}
		seen[name] = true
	}

	if r.Workers < 0 || r.Workers > MaxWorkers {
		return fmt.Errorf("%w: render.workers must be between 0 and %d, got %d", ErrInvalidValue, MaxWorkers, r.Workers)
	}

	if r.Style != "" {
		if err := assets.ValidateAssetName(r.Style); err != nil {
			return fmt.Errorf("%w: render.style: %v", ErrInvalidValue, err)
		}
	}

	if len(r.HeadingMarkers) > MaxMarkers {
		return fmt.Errorf("%w: render.headingMarkers has %d entries (max %d)", ErrInvalidValue, len(r.HeadingMarkers), MaxMarkers)
	}
	for i, m := range r.HeadingMarkers {
		if err := validateFieldLength(fmt.Sprintf("render.headingMarkers[%d]", i), m, MaxMarkerLength); err != nil {
			return err
		}
	}

	if err := validateFieldLength("render.pandoc.binary", r.Pandoc.Binary, MaxBinaryLength); err != nil {
		return err
	}
	return validateFieldLength("render.pandoc.engine", r.Pandoc.Engine, MaxBinaryLength)
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's searched in standard locations. Keys absent from the
// file keep their DefaultConfig value.
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	configPath := nameOrPath
	if !fileutil.IsFilePath(nameOrPath) {
		var err error
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yamlutil.Unmarshal(data, cfg, yamlutil.Strict()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SearchPaths lists where LoadConfig looks for a config name.
func SearchPaths(name string) []string {
	extensions := []string{".yaml", ".yml"}
	paths := make([]string, 0, len(extensions)*2)

	for _, ext := range extensions {
		paths = append(paths, name+ext)
	}
	if userConfigDir, err := os.UserConfigDir(); err == nil {
		for _, ext := range extensions {
			paths = append(paths, filepath.Join(userConfigDir, "go-mailmerge", name+ext))
		}
	}
	return paths
}

// resolveConfigPath returns the first existing SearchPaths entry.
func resolveConfigPath(name string) (string, error) {
	tried := SearchPaths(name)
	for _, p := range tried {
		if fileutil.FileExists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(tried, ", "))
}
