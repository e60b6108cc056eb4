package iocache

import (
	"errors"
	"fmt"
	"io"

	"github.com/huangsam/recap/internal/contract"
	"github.com/huangsam/recap/internal/parquet"
)

// ExecuteRunExport writes the run history of store to two Parquet files
// named after outputFile.
func ExecuteRunExport(w io.Writer, store contract.RunStore, outputFile string) error {
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}

	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get run status: %w", err)
	}
	if status.TotalRuns == 0 {
		return errors.New("no run data found to export")
	}

	_, _ = fmt.Fprintf(w, "Exporting data from %s backend...\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Total runs: %d\n", status.TotalRuns)
	_, _ = fmt.Fprintf(w, "Total chunk records: %d\n", status.TableSizes[chunkResultsTable])

	runs, err := store.GetAllRuns()
	if err != nil {
		return fmt.Errorf("failed to retrieve runs: %w", err)
	}
	chunks, err := store.GetAllChunkRecords()
	if err != nil {
		return fmt.Errorf("failed to retrieve chunk records: %w", err)
	}

	runsFile := outputFile + ".runs.parquet"
	parquetRuns := parquet.ConvertRunRecords(runs)
	if err := parquet.WriteRunsParquet(parquetRuns, runsFile); err != nil {
		return fmt.Errorf("failed to write runs: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d runs to: %s\n", len(parquetRuns), runsFile)

	chunksFile := outputFile + ".chunk_results.parquet"
	parquetChunks := parquet.ConvertChunkRecords(chunks)
	if err := parquet.WriteChunkResultsParquet(parquetChunks, chunksFile); err != nil {
		return fmt.Errorf("failed to write chunk results: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d chunk records to: %s\n", len(parquetChunks), chunksFile)
	return nil
}
