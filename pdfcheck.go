package mailmerge

import (
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// Keep pdfcpu from writing a configuration directory.
	api.DisableConfigDir()
}

// ValidatePDF parses and validates the PDF at path and returns its page
// count. Fails with ErrInvalidPDF.
func ValidatePDF(path string) (int, error) {
	f, err := os.Open(path) // #nosec G304 -- path is a renderer output in a session directory
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	defer f.Close()

	ctx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	if ctx.PageCount < 1 {
		return 0, fmt.Errorf("%w: no pages", ErrInvalidPDF)
	}
	return ctx.PageCount, nil
}
