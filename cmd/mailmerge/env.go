package main

import (
	"io"
	"os"
	"time"

	mailmerge "github.com/alnah/go-mailmerge"
)

// Environment holds injectable dependencies for testability.
type Environment struct {
	Now    func() time.Time
	Stdout io.Writer
	Stderr io.Writer
	// NewService builds the Service a command runs on. Tests append options
	// such as a mock renderer chain.
	NewService func(opts ...mailmerge.Option) (*mailmerge.Service, error)
}

// DefaultEnv returns the production environment.
func DefaultEnv() *Environment {
	return &Environment{
		Now:        time.Now,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		NewService: mailmerge.New,
	}
}
