package assets

import (
	"errors"
	"sort"
)

// Resolver tries a custom directory first and falls back to the embedded
// styles when the custom directory lacks the requested style.
type Resolver struct {
	custom   StyleLoader // nil if no custom path configured
	embedded StyleLoader
}

// NewResolver creates a Resolver. An empty customBasePath uses embedded
// styles only. Returns an error if customBasePath is set but invalid.
func NewResolver(customBasePath string) (*Resolver, error) {
	r := &Resolver{embedded: NewEmbeddedLoader()}

	if customBasePath != "" {
		fsLoader, err := NewFilesystemLoader(customBasePath)
		if err != nil {
			return nil, err
		}
		r.custom = fsLoader
	}

	return r, nil
}

// LoadStyle loads a style, custom loader first. Validation and I/O errors
// from the custom loader are returned without fallback.
func (r *Resolver) LoadStyle(name string) (string, error) {
	if r.custom == nil {
		return r.embedded.LoadStyle(name)
	}

	content, err := r.custom.LoadStyle(name)
	if err == nil {
		return content, nil
	}
	if !errors.Is(err, ErrStyleNotFound) {
		return "", err
	}

	return r.embedded.LoadStyle(name)
}

// Styles lists the union of custom and embedded style names.
func (r *Resolver) Styles() []string {
	seen := make(map[string]bool)
	var names []string
	loaders := []StyleLoader{r.embedded}
	if r.custom != nil {
		loaders = append(loaders, r.custom)
	}
	for _, l := range loaders {
		for _, n := range l.Styles() {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	sort.Strings(names)
	return names
}

// HasCustomLoader returns true if a custom directory is configured.
func (r *Resolver) HasCustomLoader() bool {
	return r.custom != nil
}

// Compile-time interface check.
var _ StyleLoader = (*Resolver)(nil)
