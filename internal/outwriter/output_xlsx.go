package outwriter

import (
	"fmt"
	"io"
	"strings"

	"github.com/huangsam/recap/schema"
	"github.com/xuri/excelize/v2"
)

const (
	entriesSheet  = "Entries"
	metadataSheet = "Metadata"
)

// writeDocumentXLSX writes a workbook with one row per entry and a metadata sheet.
func writeDocumentXLSX(w io.Writer, doc *schema.AggregatedDocument) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	index, err := f.NewSheet(entriesSheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	header := []any{"Rank", "Category", "Title", "Description", "Impact", "Confidence", "Score", "Label", "Authors", "Occurred", "Provenance"}
	if err := f.SetSheetRow(entriesSheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetRowStyle(entriesSheet, 1, 1, bold); err != nil {
		return err
	}

	row := 2
	for _, c := range doc.Categories() {
		for i, e := range doc.Entries[c] {
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return err
			}
			values := []any{
				i + 1,
				string(c),
				e.Title,
				e.Description,
				string(e.Impact),
				e.Confidence,
				e.ImpactScore,
				schema.GetPlainLabel(e.ImpactScore),
				strings.Join(e.Authors, ", "),
				e.OccurredAt,
				strings.Join(e.Provenance, ", "),
			}
			if err := f.SetSheetRow(entriesSheet, cell, &values); err != nil {
				return err
			}
			row++
		}
	}
	if err := f.SetColWidth(entriesSheet, "C", "D", 50); err != nil {
		return err
	}

	if err := writeMetadataSheet(f, doc.Metadata, bold); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func writeMetadataSheet(f *excelize.File, m schema.Metadata, bold int) error {
	if _, err := f.NewSheet(metadataSheet); err != nil {
		return err
	}
	rows := [][]any{
		{"Field", "Value"},
		{"Range start", m.RangeStart},
		{"Range end", m.RangeEnd},
		{"Total chunks", m.TotalChunks},
		{"Succeeded", m.Succeeded},
		{"Failed", m.Failed},
		{"Elapsed (ms)", m.ElapsedMs},
		{"Incomplete", m.Incomplete},
	}
	for _, w := range m.Warnings {
		rows = append(rows, []any{"Warning", w})
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(metadataSheet, cell, &r); err != nil {
			return err
		}
	}
	return f.SetRowStyle(metadataSheet, 1, 1, bold)
}
