// Package pipeline turns a merged Word document into printable markup.
//
// Stage 1 (Extract) reduces the document body to an ordered list of blocks:
// headings, bold paragraphs, text paragraphs and page breaks. The markup is
// then serialized to Markdown in one of two dialects:
//   - CommonMark, converted here to sanitized HTML via goldmark and
//     bluemonday, for the headless Chrome renderer
//   - Pandoc, with raw LaTeX/HTML page breaks, for the pandoc renderer
//
// PDF generation itself is handled by the renderers of the root mailmerge
// package. This separation keeps the pipeline focused on document structure
// while renderers handle page layout and engine processes.
package pipeline
