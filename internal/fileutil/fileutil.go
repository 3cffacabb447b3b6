// Package fileutil provides file and path utility functions.
package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// Sentinel errors for file utility operations.
var (
	ErrExtensionEmpty         = errors.New("extension cannot be empty")
	ErrExtensionPathTraversal = errors.New("extension contains path separator or null byte")
)

// MaxNameLength bounds generated file names, extension excluded.
const MaxNameLength = 120

// WriteTempFile creates a file with a random name and the given extension
// inside dir (os.TempDir when empty) holding content.
// Returns the file path and a cleanup function to remove the file.
func WriteTempFile(dir, content, extension string) (path string, cleanup func(), err error) {
	if err := ValidateExtension(extension); err != nil {
		return "", nil, err
	}

	tmpFile, err := os.CreateTemp(dir, "mailmerge-*."+extension)
	if err != nil {
		return "", nil, fmt.Errorf("creating temp file: %w", err)
	}

	path = tmpFile.Name()
	cleanup = func() { _ = os.Remove(path) }

	if _, writeErr := tmpFile.WriteString(content); writeErr != nil {
		_ = tmpFile.Close()
		cleanup()
		return "", nil, fmt.Errorf("writing temp file: %w", writeErr)
	}

	if closeErr := tmpFile.Close(); closeErr != nil {
		cleanup()
		return "", nil, fmt.Errorf("closing temp file: %w", closeErr)
	}

	return path, cleanup, nil
}

// ValidateExtension checks that the extension is safe for use in temp file names.
func ValidateExtension(extension string) error {
	if extension == "" {
		return ErrExtensionEmpty
	}
	if strings.ContainsAny(extension, "/\\\x00") {
		return ErrExtensionPathTraversal
	}
	return nil
}

// FileExists returns true if the path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// IsFilePath returns true if the string looks like a file path rather than a name.
// A string containing path separators (/, \) is treated as a path.
//
// Examples:
//   - "default" -> false (name)
//   - "./letter.css" -> true (relative path)
//   - "/absolute/path.css" -> true (absolute)
//   - "C:\windows\path.css" -> true (Windows)
func IsFilePath(s string) bool {
	return strings.ContainsAny(s, "/\\")
}

// HasExtension reports whether name ends with one of exts (".docx", ...),
// compared case-insensitively.
func HasExtension(name string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// reservedChars cannot appear in file names on at least one common platform.
const reservedChars = `<>:"/\|?*`

// SanitizeFilename replaces each reserved character (<>:"/\|?*) and each
// control character of name with an underscore. Everything else is kept.
func SanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(reservedChars, r) || unicode.IsControl(r) {
			return '_'
		}
		return r
	}, name)
}

// SecureName reduces an uploaded file name to a safe base name: directory
// parts are dropped, reserved characters and whitespace runs become
// underscores, leading dots are stripped and the result is truncated.
// Returns "" when nothing usable remains.
func SecureName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = SanitizeFilename(name)
	name = strings.Join(strings.Fields(name), "_")
	name = strings.TrimLeft(name, "._")

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if r := []rune(base); len(r) > MaxNameLength {
		base = string(r[:MaxNameLength])
	}
	if base == "" {
		return ""
	}
	return base + ext
}
