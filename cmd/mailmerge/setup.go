package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	mailmerge "github.com/alnah/go-mailmerge"
	"github.com/alnah/go-mailmerge/internal/assets"
	"github.com/alnah/go-mailmerge/internal/config"
	"github.com/alnah/go-mailmerge/internal/hints"
)

// usageErrorf returns an ErrUsage error with a formatted detail.
func usageErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, args...))
}

// resolveConfig loads the config file named by the flag or MAILMERGE_CONFIG,
// then applies environment overrides. Callers apply flags and validate.
func resolveConfig(flagConfig string, env *envConfig) (*config.Config, error) {
	name := flagConfig
	if name == "" {
		name = env.ConfigPath
	}

	cfg := config.DefaultConfig()
	if name != "" {
		loaded, err := config.LoadConfig(name)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	applyEnvConfig(env, cfg)
	return cfg, nil
}

// configName returns the config name used for lookup hints.
func configName(flagConfig string) string {
	if flagConfig != "" {
		return flagConfig
	}
	if name := loadEnvConfig().ConfigPath; name != "" {
		return name
	}
	return "mailmerge"
}

// newLogger returns a text logger on w at base level. Quiet keeps errors
// only, verbose enables debug records.
func newLogger(w io.Writer, f commonFlags, base slog.Level) *slog.Logger {
	level := base
	switch {
	case f.quiet:
		level = slog.LevelError
	case f.verbose:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// serviceOptions maps a validated config to Service options.
func serviceOptions(cfg *config.Config, logger *slog.Logger, now func() time.Time) []mailmerge.Option {
	engines := make([]string, len(cfg.Render.Engines))
	for i, e := range cfg.Render.Engines {
		engines[i] = strings.ToLower(e)
	}

	return []mailmerge.Option{
		mailmerge.WithLogger(logger),
		mailmerge.WithTimeout(cfg.Render.Timeout),
		mailmerge.WithMaxSessions(cfg.Sessions.Max),
		mailmerge.WithWorkDir(cfg.Sessions.WorkDir),
		mailmerge.WithPage(&mailmerge.PageSettings{
			Size:        strings.ToLower(cfg.Page.Size),
			Orientation: strings.ToLower(cfg.Page.Orientation),
			Margin:      cfg.Page.Margin,
		}),
		mailmerge.WithTimestampFormat(cfg.Naming.Timestamp),
		mailmerge.WithHeadingMarkers(cfg.Render.HeadingMarkers...),
		mailmerge.WithEngines(engines...),
		mailmerge.WithWorkers(cfg.Render.Workers),
		mailmerge.WithStyle(cfg.Render.Style),
		mailmerge.WithAssetPath(cfg.Assets.BasePath),
		mailmerge.WithPandoc(cfg.Render.Pandoc.Binary, cfg.Render.Pandoc.Engine),
		mailmerge.WithClock(now),
	}
}

// reportError prints err with an actionable hint and returns its exit code.
func reportError(w io.Writer, err error, cfg *config.Config, cfgName string) int {
	fmt.Fprintf(w, "Error: %v%s\n", err, hintFor(err, cfg, cfgName))
	return exitCodeFor(err)
}

// hintFor returns the hint matching err, or "".
func hintFor(err error, cfg *config.Config, cfgName string) string {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	switch {
	case errors.Is(err, mailmerge.ErrConversionEngineUnavailable):
		return hints.ForEngineUnavailable(cfg.Render.Pandoc.Binary)
	case errors.Is(err, mailmerge.ErrBrowserConnect):
		return hints.ForBrowserConnect()
	case errors.Is(err, config.ErrConfigNotFound):
		return hints.ForConfigNotFound(config.SearchPaths(cfgName))
	case errors.Is(err, assets.ErrStyleNotFound):
		resolver, rerr := assets.NewResolver(cfg.Assets.BasePath)
		if rerr != nil {
			return ""
		}
		return hints.ForStyleNotFound(resolver.Styles())
	case errors.Is(err, mailmerge.ErrInvalidFileType):
		accepted := append(append([]string{}, mailmerge.TemplateExtensions...), mailmerge.DataExtensions...)
		return hints.ForFileType(accepted)
	case errors.Is(err, ErrWriteOutput):
		return hints.ForOutputDirectory()
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "timed out"):
		return hints.ForTimeout()
	}
	return ""
}
