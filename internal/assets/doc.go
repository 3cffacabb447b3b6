// Package assets provides the CSS stylesheets applied to merged documents
// before they are printed to PDF.
//
// # Loader Architecture
//
//	StyleLoader (interface)
//	    │
//	    ├── EmbeddedLoader    - built-in styles compiled into the binary
//	    ├── FilesystemLoader  - styles from a custom directory on disk
//	    └── Resolver          - custom first, embedded as fallback
//
// A custom directory holds {basePath}/styles/{name}.css. A style found there
// overrides the embedded style of the same name.
//
// # Security
//
// Style names are validated to prevent path traversal. FilesystemLoader
// resolves symlinks and verifies paths stay within basePath.
package assets
