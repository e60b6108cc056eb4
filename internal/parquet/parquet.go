// Package parquet provides data structures and functions for exporting recap
// documents and run history to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/huangsam/recap/schema"
	"github.com/parquet-go/parquet-go"
)

// Run represents a single collect run with metadata.
// This struct maps to the recap_runs database table.
type Run struct {
	// RunID is the unique identifier for this run
	RunID string `parquet:"run_id,snappy"`

	// StartTime is when the run began
	StartTime time.Time `parquet:"start_time,snappy"`

	// EndTime is when the run completed (nullable)
	EndTime *time.Time `parquet:"end_time,optional,snappy"`

	// RunDurationMs is the duration of the run in milliseconds (nullable)
	RunDurationMs *int64 `parquet:"run_duration_ms,optional,snappy"`

	TotalChunks int32 `parquet:"total_chunks,snappy"`
	Succeeded   int32 `parquet:"succeeded,snappy"`
	Failed      int32 `parquet:"failed,snappy"`

	// ConfigParams contains the JSON-encoded configuration parameters (nullable)
	ConfigParams *string `parquet:"config_params,optional,snappy"`
}

// ChunkResult represents the outcome of one chunk in a run.
// This struct maps to the recap_chunk_results database table.
type ChunkResult struct {
	RunID      string    `parquet:"run_id,snappy"`
	ChunkID    string    `parquet:"chunk_id,snappy"`
	RangeStart time.Time `parquet:"range_start,snappy"`
	RangeEnd   time.Time `parquet:"range_end,snappy"`
	Status     string    `parquet:"status,snappy"`
	ElapsedMs  int64     `parquet:"elapsed_ms,snappy"`
	EntryCount int32     `parquet:"entry_count,snappy"`

	// ErrorText is the failure reason of a failed chunk (nullable)
	ErrorText *string `parquet:"error_text,optional,snappy"`
}

// Entry is one ranked entry of an aggregated document.
type Entry struct {
	Rank        int32     `parquet:"rank,snappy"`
	Category    string    `parquet:"category,snappy"`
	Title       string    `parquet:"title,snappy"`
	Description string    `parquet:"description,snappy"`
	Impact      string    `parquet:"impact,snappy"`
	Confidence  float64   `parquet:"confidence,snappy"`
	ImpactScore float64   `parquet:"impact_score,snappy"`
	Label       string    `parquet:"label,snappy"`
	Authors     string    `parquet:"authors,snappy"`
	OccurredAt  time.Time `parquet:"occurred_at,snappy"`
	Provenance  string    `parquet:"provenance,snappy"`
}

// Write writes rows to w. The schema is derived from the struct tags of T.
func Write[T any](w io.Writer, rows []T) error {
	writer := parquet.NewGenericWriter[T](w)
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// WriteFile writes rows to a new Parquet file at outputPath.
func WriteFile[T any](rows []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := Write(file, rows); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// WriteRunsParquet writes run rows to a Parquet file.
func WriteRunsParquet(data []Run, outputPath string) error {
	return WriteFile(data, outputPath)
}

// WriteChunkResultsParquet writes chunk rows to a Parquet file.
func WriteChunkResultsParquet(data []ChunkResult, outputPath string) error {
	return WriteFile(data, outputPath)
}

// ReadFile reads every row of a Parquet file written with T's schema.
func ReadFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet file: %w", err)
	}
	return rows, nil
}

// ConvertRunRecords converts schema.RunRecord to Run for Parquet export.
func ConvertRunRecords(records []schema.RunRecord) []Run {
	result := make([]Run, len(records))
	for i, record := range records {
		result[i] = Run{
			RunID:         record.RunID,
			StartTime:     record.StartTime,
			EndTime:       record.EndTime,
			RunDurationMs: record.RunDurationMs,
			TotalChunks:   record.TotalChunks,
			Succeeded:     record.Succeeded,
			Failed:        record.Failed,
			ConfigParams:  record.ConfigParams,
		}
	}
	return result
}

// ConvertChunkRecords converts schema.ChunkRecord to ChunkResult for Parquet export.
func ConvertChunkRecords(records []schema.ChunkRecord) []ChunkResult {
	result := make([]ChunkResult, len(records))
	for i, record := range records {
		result[i] = ChunkResult{
			RunID:      record.RunID,
			ChunkID:    record.ChunkID,
			RangeStart: record.RangeStart,
			RangeEnd:   record.RangeEnd,
			Status:     string(record.Status),
			ElapsedMs:  record.ElapsedMs,
			EntryCount: record.EntryCount,
			ErrorText:  record.ErrorText,
		}
	}
	return result
}

// ConvertDocument flattens a document into ranked entry rows.
// The rank restarts at 1 for every category.
func ConvertDocument(doc *schema.AggregatedDocument) []Entry {
	var result []Entry
	for _, c := range doc.Categories() {
		for i, e := range doc.Entries[c] {
			result = append(result, Entry{
				Rank:        int32(i + 1),
				Category:    string(c),
				Title:       e.Title,
				Description: e.Description,
				Impact:      string(e.Impact),
				Confidence:  e.Confidence,
				ImpactScore: e.ImpactScore,
				Label:       schema.GetPlainLabel(e.ImpactScore),
				Authors:     strings.Join(e.Authors, "|"),
				OccurredAt:  e.OccurredAt,
				Provenance:  strings.Join(e.Provenance, "|"),
			})
		}
	}
	return result
}
