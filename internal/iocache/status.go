package iocache

import (
	"fmt"
	"io"
	"slices"

	"github.com/huangsam/recap/schema"
)

// PrintCacheStats prints the counters of the unit result cache.
func PrintCacheStats(w io.Writer, stats schema.CacheStats) {
	_, _ = fmt.Fprintf(w, "Cache Entries: %d\n", stats.Size)
	_, _ = fmt.Fprintf(w, "Hits: %d\n", stats.Hits)
	_, _ = fmt.Fprintf(w, "Misses: %d\n", stats.Misses)
	_, _ = fmt.Fprintf(w, "Evictions: %d\n", stats.Evictions)
	_, _ = fmt.Fprintf(w, "Hit Rate: %.1f%%\n", stats.HitRate()*100)
}

// PrintRunStatus prints run store status information.
func PrintRunStatus(w io.Writer, status schema.RunStatus) {
	_, _ = fmt.Fprintf(w, "Run Backend: %s\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Connected: %t\n", status.Connected)
	if !status.Connected {
		return
	}
	_, _ = fmt.Fprintf(w, "Total Runs: %d\n", status.TotalRuns)
	if status.TotalRuns > 0 {
		_, _ = fmt.Fprintf(w, "Last Run ID: %s\n", status.LastRunID)
		_, _ = fmt.Fprintf(w, "Last Run: %s\n", status.LastRunTime.Format("2006-01-02 15:04:05"))
		_, _ = fmt.Fprintf(w, "Oldest Run: %s\n", status.OldestRunTime.Format("2006-01-02 15:04:05"))
		_, _ = fmt.Fprintf(w, "Total Chunks Recorded: %d\n", status.TotalChunks)
	}
	_, _ = fmt.Fprintln(w, "Table Sizes:")
	tables := make([]string, 0, len(status.TableSizes))
	for table := range status.TableSizes {
		tables = append(tables, table)
	}
	slices.Sort(tables)
	for _, table := range tables {
		_, _ = fmt.Fprintf(w, "  %s: %d rows\n", table, status.TableSizes[table])
	}
}
