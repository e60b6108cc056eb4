package outwriter

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/huangsam/recap/schema"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// markdown converts the Markdown rendering to HTML; GFM covers the metadata table.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// renderMarkdown builds the release-note style Markdown of a document.
func renderMarkdown(doc *schema.AggregatedDocument, fmtFloat func(float64) string) string {
	var b strings.Builder
	m := doc.Metadata
	fmt.Fprintf(&b, "# Recap %s\n\n", schema.DateRange{Start: m.RangeStart, End: m.RangeEnd})
	if m.Incomplete {
		fmt.Fprintf(&b, "> **Incomplete:** %d of %d chunks failed.\n\n", m.Failed, m.TotalChunks)
	}

	for _, c := range doc.Categories() {
		fmt.Fprintf(&b, "## %s\n\n", categoryTitle(c))
		for _, e := range doc.Entries[c] {
			fmt.Fprintf(&b, "- **%s** (%s, %s)", escapeMarkdown(e.Title), e.Impact, fmtFloat(e.ImpactScore))
			if len(e.Authors) > 0 {
				fmt.Fprintf(&b, " by %s", escapeMarkdown(schema.FormatAuthors(e.Authors)))
			}
			b.WriteString("\n")
			if e.Description != "" {
				fmt.Fprintf(&b, "  %s\n", escapeMarkdown(e.Description))
			}
		}
		b.WriteString("\n")
	}

	if len(m.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range m.Warnings {
			fmt.Fprintf(&b, "- %s\n", escapeMarkdown(w))
		}
		b.WriteString("\n")
	}

	b.WriteString("| Chunks | Succeeded | Failed | Elapsed (ms) |\n|---:|---:|---:|---:|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d |\n", m.TotalChunks, m.Succeeded, m.Failed, m.ElapsedMs)
	return b.String()
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`, "|", `\|`, "<", "&lt;",
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// writeDocumentMarkdown writes the Markdown rendering.
func writeDocumentMarkdown(w io.Writer, doc *schema.AggregatedDocument, fmtFloat func(float64) string) error {
	_, err := io.WriteString(w, renderMarkdown(doc, fmtFloat))
	return err
}

// writeDocumentHTML writes a standalone HTML page converted from the Markdown rendering.
func writeDocumentHTML(w io.Writer, doc *schema.AggregatedDocument, fmtFloat func(float64) string) error {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(renderMarkdown(doc, fmtFloat)), &body); err != nil {
		return fmt.Errorf("failed to render HTML: %w", err)
	}
	title := html.EscapeString(fmt.Sprintf("Recap %s", schema.DateRange{Start: doc.Metadata.RangeStart, End: doc.Metadata.RangeEnd}))
	_, err := fmt.Fprintf(w, "<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n%s</body>\n</html>\n",
		title, body.String())
	return err
}
