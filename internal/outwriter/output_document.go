package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/recap/internal/contract"
	"github.com/huangsam/recap/internal/parquet"
	"github.com/huangsam/recap/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// categoryTitle renders a category for headings, e.g. "improvement" as "Improvement".
func categoryTitle(c schema.Category) string {
	return titleCaser.String(strings.ReplaceAll(string(c), "_", " "))
}

// WriteDocument outputs the document, dispatching based on the configured output format.
func WriteDocument(doc *schema.AggregatedDocument, cfg *contract.Config, duration time.Duration) error {
	fmtFloat := createFormatter(cfg.Precision)

	var err error
	switch cfg.Output {
	case schema.JSONOut:
		err = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, doc)
		}, "Wrote JSON")
	case schema.CSVOut:
		err = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeDocumentCSV(w, doc, fmtFloat)
		}, "Wrote CSV")
	case schema.MarkdownOut:
		err = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeDocumentMarkdown(w, doc, fmtFloat)
		}, "Wrote Markdown")
	case schema.HTMLOut:
		err = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeDocumentHTML(w, doc, fmtFloat)
		}, "Wrote HTML")
	case schema.XLSXOut:
		err = writeBinaryFile(cfg.OutputFile, func(w io.Writer) error {
			return writeDocumentXLSX(w, doc)
		}, "Wrote XLSX")
	case schema.ParquetOut:
		err = writeBinaryFile(cfg.OutputFile, func(w io.Writer) error {
			return parquet.Write(w, parquet.ConvertDocument(doc))
		}, "Wrote Parquet")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeDocumentTable(w, doc, cfg, fmtFloat, duration)
		}, "Wrote table")
	}
	if err != nil {
		return fmt.Errorf("error writing %s output: %w", cfg.Output, err)
	}
	return nil
}

// writeDocumentTable generates and writes the human-readable table.
func writeDocumentTable(w io.Writer, doc *schema.AggregatedDocument, cfg *contract.Config, fmtFloat func(float64) string, duration time.Duration) error {
	table := tablewriter.NewWriter(w)

	headers := []string{"Rank", "Category", "Title", "Score", "Label"}
	if cfg.Detail {
		headers = append(headers, "Impact", "Conf", "Authors", "Chunks")
	}
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignLeft
	})

	titleWidth := getMaxTitleWidth(cfg)
	var data [][]string
	for _, c := range doc.Categories() {
		for i, e := range doc.Entries[c] {
			row := []string{
				strconv.Itoa(i + 1),
				categoryTitle(c),
				contract.TruncateText(e.Title, titleWidth),
				fmtFloat(e.ImpactScore),
				contract.GetColorLabel(e.ImpactScore),
			}
			if cfg.Detail {
				row = append(row,
					string(e.Impact),
					fmtFloat(e.Confidence),
					schema.FormatAuthors(e.Authors),
					strconv.Itoa(len(e.Provenance)),
				)
			}
			data = append(data, row)
		}
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	m := doc.Metadata
	if _, err := fmt.Fprintf(w, "Showing %d entries for %s (chunks: %d ok, %d failed)\n",
		len(data), schema.DateRange{Start: m.RangeStart, End: m.RangeEnd}, m.Succeeded, m.Failed); err != nil {
		return err
	}
	for _, warning := range m.Warnings {
		if _, err := fmt.Fprintf(w, "⚠️  %s\n", warning); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Collected in %v with %d concurrent chunks and %d concurrent tasks.\n",
		duration.Round(time.Millisecond), cfg.MaxConcurrentChunks, cfg.MaxConcurrency)
	return err
}

// writeDocumentCSV writes one record per entry, in category then rank order.
func writeDocumentCSV(w io.Writer, doc *schema.AggregatedDocument, fmtFloat func(float64) string) error {
	header := []string{
		"rank",
		"category",
		"title",
		"description",
		"impact",
		"confidence",
		"impact_score",
		"label",
		"authors",
		"occurred_at",
		"provenance",
	}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, c := range doc.Categories() {
			for i, e := range doc.Entries[c] {
				rec := []string{
					strconv.Itoa(i + 1),
					string(c),
					e.Title,
					e.Description,
					string(e.Impact),
					fmtFloat(e.Confidence),
					fmtFloat(e.ImpactScore),
					schema.GetPlainLabel(e.ImpactScore),
					strings.Join(e.Authors, "|"),
					e.OccurredAt.Format(contract.DateTimeFormat),
					strings.Join(e.Provenance, "|"),
				}
				if err := cw.Write(rec); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
