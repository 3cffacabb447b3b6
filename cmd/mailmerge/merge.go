package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	flag "github.com/spf13/pflag"

	mailmerge "github.com/alnah/go-mailmerge"
	"github.com/alnah/go-mailmerge/internal/config"
)

// runMergeCmd runs a one-shot merge and returns an exit code.
func runMergeCmd(ctx context.Context, args []string, env *Environment) int {
	f, err := parseMergeFlags(args)
	if errors.Is(err, flag.ErrHelp) {
		printMergeUsage(env.Stdout)
		return ExitSuccess
	}
	if err != nil {
		if !errors.Is(err, ErrUsage) {
			err = fmt.Errorf("%w: %v", ErrUsage, err)
		}
		fmt.Fprintf(env.Stderr, "Error: %v\n\n", err)
		printMergeUsage(env.Stderr)
		return ExitUsage
	}

	warnUnknownEnvVars(env.Stderr)

	cfg, err := resolveConfig(f.common.config, loadEnvConfig())
	if err == nil {
		applyRenderFlags(&f.render, cfg)
		applyPageFlags(&f.page, cfg)
		err = cfg.Validate()
	}
	if err == nil {
		err = runMerge(ctx, f, cfg, env)
	}
	if err != nil {
		return reportError(env.Stderr, err, cfg, configName(f.common.config))
	}
	return ExitSuccess
}

// runMerge uploads the template and data into a throwaway session, merges
// them and copies the outputs into the output directory.
func runMerge(ctx context.Context, f *mergeFlags, cfg *config.Config, env *Environment) error {
	logger := newLogger(env.Stderr, f.common, slog.LevelWarn)
	opts := append(serviceOptions(cfg, logger, env.Now), mailmerge.WithWorkDir(""))

	svc, err := env.NewService(opts...)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	sessionID := uuid.NewString()

	if err := uploadFile(f.template, func(name string, file *os.File) error {
		_, err := svc.UploadTemplate(ctx, sessionID, name, file)
		return err
	}); err != nil {
		return err
	}
	if err := uploadFile(f.data, func(name string, file *os.File) error {
		_, err := svc.UploadData(ctx, sessionID, name, file)
		return err
	}); err != nil {
		return err
	}

	format := mailmerge.FormatWord
	if f.pdf {
		format = mailmerge.FormatPDF
	}
	res, err := svc.Merge(ctx, sessionID, mailmerge.MergeRequest{Format: format, MultipleFiles: f.multiple})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(f.output, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteOutput, err)
	}
	for _, name := range res.Files {
		dl, err := svc.Download(sessionID, name)
		if err != nil {
			return err
		}
		path := filepath.Join(f.output, dl.Filename)
		if err := os.WriteFile(path, dl.Data, 0o644); err != nil {
			return fmt.Errorf("%w: %v", ErrWriteOutput, err)
		}
		if !f.common.quiet {
			fmt.Fprintf(env.Stdout, "Created %s\n", path)
		}
	}
	return nil
}

// uploadFile opens path and hands it to upload under its base name.
func uploadFile(path string, upload func(name string, file *os.File) error) error {
	file, err := os.Open(path) // #nosec G304 -- path is user-provided
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	defer func() { _ = file.Close() }()
	return upload(filepath.Base(path), file)
}
