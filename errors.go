package mailmerge

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Service methods.
var (
	ErrInvalidFileType             = errors.New("invalid file type")
	ErrMalformedTemplate           = errors.New("malformed template")
	ErrNoWorksheetFound            = errors.New("no worksheet found")
	ErrMalformedSpreadsheet        = errors.New("malformed spreadsheet")
	ErrSessionNotFound             = errors.New("session not found")
	ErrMissingTemplateOrData       = errors.New("template and data must both be uploaded")
	ErrConversionEngineUnavailable = errors.New("no conversion engine available")
	ErrConversionFailed            = errors.New("conversion failed")
	ErrFileNotFound                = errors.New("file not found")
)

// Renderer errors.
var (
	// ErrRendererUnavailable marks a renderer that cannot run at all
	// (missing binary, browser cannot start), as opposed to one that failed
	// on the content.
	ErrRendererUnavailable = errors.New("renderer unavailable")
	ErrBrowserConnect      = errors.New("failed to connect to browser")
	ErrPageCreate          = errors.New("failed to create browser page")
	ErrPageLoad            = errors.New("failed to load page")
	ErrPDFGeneration       = errors.New("PDF generation failed")
	ErrInvalidPDF          = errors.New("rendered file is not a valid PDF")
	ErrUnknownEngine       = errors.New("unknown rendering engine")
)

// Page settings validation errors.
var (
	ErrInvalidPageSize    = errors.New("invalid page size")
	ErrInvalidOrientation = errors.New("invalid orientation")
	ErrInvalidMargin      = errors.New("invalid margin")
)

// ErrorKind names the category of a failure as reported to clients.
type ErrorKind string

// Error kinds, one per Service sentinel.
const (
	KindInvalidFileType             ErrorKind = "InvalidFileType"
	KindMalformedTemplate           ErrorKind = "MalformedTemplate"
	KindNoWorksheetFound            ErrorKind = "NoWorksheetFound"
	KindMalformedSpreadsheet        ErrorKind = "MalformedSpreadsheet"
	KindSessionNotFound             ErrorKind = "SessionNotFound"
	KindMissingTemplateOrData       ErrorKind = "MissingTemplateOrData"
	KindConversionEngineUnavailable ErrorKind = "ConversionEngineUnavailable"
	KindConversionFailed            ErrorKind = "ConversionFailed"
	KindFileNotFound                ErrorKind = "FileNotFound"
	KindInternal                    ErrorKind = "Internal"
)

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrInvalidFileType, KindInvalidFileType},
	{ErrMalformedTemplate, KindMalformedTemplate},
	{ErrNoWorksheetFound, KindNoWorksheetFound},
	{ErrMalformedSpreadsheet, KindMalformedSpreadsheet},
	{ErrSessionNotFound, KindSessionNotFound},
	{ErrMissingTemplateOrData, KindMissingTemplateOrData},
	{ErrConversionEngineUnavailable, KindConversionEngineUnavailable},
	{ErrConversionFailed, KindConversionFailed},
	{ErrFileNotFound, KindFileNotFound},
}

// KindOf returns the kind of err, KindInternal when err wraps no sentinel
// and "" for a nil error.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// FailureResult is the structured result of a failed operation.
type FailureResult struct {
	Success bool      `json:"success"`
	Error   string    `json:"error"`
	Kind    ErrorKind `json:"kind"`
}

// Failure builds the client-facing result for err.
func Failure(err error) FailureResult {
	return FailureResult{Success: false, Error: err.Error(), Kind: KindOf(err)}
}

// recoverPanic converts a panic in a Service method into ErrConversionFailed.
func recoverPanic(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: internal error: %v", ErrConversionFailed, r)
	}
}
