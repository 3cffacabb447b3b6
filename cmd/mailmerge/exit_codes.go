package main

import (
	"errors"
	"os"

	mailmerge "github.com/alnah/go-mailmerge"
	"github.com/alnah/go-mailmerge/internal/assets"
	"github.com/alnah/go-mailmerge/internal/config"
	"github.com/alnah/go-mailmerge/internal/dateutil"
)

// Exit codes for the mailmerge CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess = 0 // Successful command
	ExitGeneral = 1 // General/unexpected error
	ExitUsage   = 2 // Invalid flags, config, or validation
	ExitIO      = 3 // Missing or unreadable input, unwritable output
	ExitEngine  = 4 // No rendering engine could produce the PDF
)

// CLI errors.
var (
	ErrUsage       = errors.New("invalid usage")
	ErrWriteOutput = errors.New("failed to write output")
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Rendering errors (exit 4)
	if errors.Is(err, mailmerge.ErrConversionEngineUnavailable) ||
		errors.Is(err, mailmerge.ErrConversionFailed) ||
		errors.Is(err, mailmerge.ErrRendererUnavailable) ||
		errors.Is(err, mailmerge.ErrBrowserConnect) ||
		errors.Is(err, mailmerge.ErrPDFGeneration) {
		return ExitEngine
	}

	// I/O and input errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, mailmerge.ErrInvalidFileType) ||
		errors.Is(err, mailmerge.ErrMalformedTemplate) ||
		errors.Is(err, mailmerge.ErrNoWorksheetFound) ||
		errors.Is(err, mailmerge.ErrMalformedSpreadsheet) ||
		errors.Is(err, mailmerge.ErrFileNotFound) ||
		errors.Is(err, ErrWriteOutput) {
		return ExitIO
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, ErrUsage) ||
		errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrEmptyConfigName) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, mailmerge.ErrInvalidPageSize) ||
		errors.Is(err, mailmerge.ErrInvalidOrientation) ||
		errors.Is(err, mailmerge.ErrInvalidMargin) ||
		errors.Is(err, mailmerge.ErrUnknownEngine) ||
		errors.Is(err, assets.ErrStyleNotFound) ||
		errors.Is(err, assets.ErrInvalidAssetName) ||
		errors.Is(err, assets.ErrInvalidBasePath) ||
		errors.Is(err, dateutil.ErrInvalidDateFormat) {
		return ExitUsage
	}

	return ExitGeneral
}
