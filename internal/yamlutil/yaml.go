// Package yamlutil wraps YAML parsing to isolate the external dependency.
package yamlutil

import (
	"errors"
	"fmt"

	"github.com/goccy/go-yaml"
)

// MaxInputSize limits YAML input to prevent memory exhaustion (default 1MB).
var MaxInputSize = 1 << 20

var (
	ErrNilData        = errors.New("yamlutil: nil or empty data")
	ErrNilDestination = errors.New("yamlutil: nil destination pointer")
	ErrInputTooLarge  = errors.New("yamlutil: input exceeds maximum size")
)

// Option adjusts decoding.
type Option func(*decodeOptions)

type decodeOptions struct {
	strict bool
}

// Strict rejects keys that have no matching struct field.
func Strict() Option {
	return func(o *decodeOptions) { o.strict = true }
}

// Unmarshal decodes data into v. Durations accept Go syntax ("60s", "2m").
func Unmarshal(data []byte, v any, opts ...Option) error {
	if len(data) == 0 {
		return ErrNilData
	}
	if len(data) > MaxInputSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrInputTooLarge, len(data), MaxInputSize)
	}
	if v == nil {
		return ErrNilDestination
	}

	var o decodeOptions
	for _, opt := range opts {
		opt(&o)
	}
	var yopts []yaml.DecodeOption
	if o.strict {
		yopts = append(yopts, yaml.Strict())
	}

	if err := yaml.UnmarshalWithOptions(data, v, yopts...); err != nil {
		return fmt.Errorf("yamlutil: %w", err)
	}
	return nil
}
