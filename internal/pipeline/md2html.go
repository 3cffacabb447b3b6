package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// ErrHTMLConversion indicates HTML conversion failed.
var ErrHTMLConversion = errors.New("HTML conversion failed")

// htmlTemplate wraps a sanitized fragment in a complete HTML5 document.
const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body>
<main class="document">
%s
</main>
</body>
</html>`

// HTMLConverter abstracts Markdown to HTML conversion.
type HTMLConverter interface {
	ToHTML(ctx context.Context, content string) (string, error)
}

// GoldmarkConverter converts Markdown to a sanitized HTML fragment using
// goldmark and a bluemonday policy.
type GoldmarkConverter struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewGoldmarkConverter creates a GoldmarkConverter with GFM extensions and
// the bluemonday user-generated-content policy.
func NewGoldmarkConverter() *GoldmarkConverter {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM, // Tables, strikethrough, autolinks
		),
		goldmark.WithRendererOptions(
			gmhtml.WithXHTML(), // Self-closing tags
			// Note: WithUnsafe() intentionally NOT used.
			// Page breaks use a placeholder converted after sanitization.
		),
	)
	return &GoldmarkConverter{md: md, policy: bluemonday.UGCPolicy()}
}

// ToHTML converts Markdown content to a sanitized HTML fragment.
// Supports context cancellation via goroutine + select pattern since
// Goldmark doesn't natively support context.
func (c *GoldmarkConverter) ToHTML(ctx context.Context, content string) (string, error) {
	// Fast path: check context before starting
	if err := ctx.Err(); err != nil {
		return "", err
	}

	type result struct {
		html string
		err  error
	}

	done := make(chan result, 1)

	go func() {
		var buf bytes.Buffer
		if err := c.md.Convert([]byte(content), &buf); err != nil {
			done <- result{err: fmt.Errorf("%w: %v", ErrHTMLConversion, err)}
			return
		}
		done <- result{html: c.policy.Sanitize(buf.String())}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return r.html, r.err
	}
}

// WrapDocument embeds an HTML fragment in a standalone HTML5 document.
func WrapDocument(title, fragment string) string {
	if title == "" {
		title = "Document"
	}
	return fmt.Sprintf(htmlTemplate, html.EscapeString(title), fragment)
}
