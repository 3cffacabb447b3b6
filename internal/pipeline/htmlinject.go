package pipeline

import (
	"context"
	"fmt"
	"strings"
)

// CSSInjector defines the contract for CSS injection into HTML.
type CSSInjector interface {
	InjectCSS(ctx context.Context, htmlContent, cssContent string) string
}

// CSSInjection injects CSS as a <style> block into HTML content.
type CSSInjection struct{}

// InjectCSS inserts a <style> block into HTML content.
// Tries </head> first, then <body>, then prepends to the HTML.
// CSS content is sanitized so it cannot close the style element.
func (s *CSSInjection) InjectCSS(ctx context.Context, htmlContent, cssContent string) string {
	if cssContent == "" || ctx.Err() != nil {
		return htmlContent
	}

	styleBlock := "<style>" + sanitizeCSS(cssContent) + "</style>"
	lowerHTML := strings.ToLower(htmlContent)

	if idx := strings.Index(lowerHTML, "</head>"); idx != -1 {
		return htmlContent[:idx] + styleBlock + htmlContent[idx:]
	}

	if idx := strings.Index(lowerHTML, "<body"); idx != -1 {
		// Find the closing > of <body...>
		if closeIdx := strings.Index(htmlContent[idx:], ">"); closeIdx != -1 {
			insertPos := idx + closeIdx + 1
			return htmlContent[:insertPos] + styleBlock + htmlContent[insertPos:]
		}
	}

	return styleBlock + htmlContent
}

// sanitizeCSS escapes </ so the stylesheet cannot end the <style> block.
func sanitizeCSS(css string) string {
	return strings.ReplaceAll(css, "</", `<\/`)
}

// HTMLBuilder assembles the printable HTML document for a Markup: CommonMark
// serialization, sanitized conversion, page-break replacement, document
// wrapper and stylesheet.
type HTMLBuilder struct {
	Converter HTMLConverter
	Injector  CSSInjector
}

// NewHTMLBuilder returns a builder using goldmark and <style> injection.
func NewHTMLBuilder() *HTMLBuilder {
	return &HTMLBuilder{
		Converter: NewGoldmarkConverter(),
		Injector:  &CSSInjection{},
	}
}

// Build renders m as a standalone HTML document titled title, styled with css.
func (b *HTMLBuilder) Build(ctx context.Context, m *Markup, title, css string) (string, error) {
	fragment, err := b.Converter.ToHTML(ctx, m.Markdown(CommonMark))
	if err != nil {
		return "", err
	}

	fragment, err = ReplacePageBreaks(fragment)
	if err != nil {
		return "", fmt.Errorf("%w: page breaks: %v", ErrHTMLConversion, err)
	}

	return b.Injector.InjectCSS(ctx, WrapDocument(title, fragment), css), nil
}
