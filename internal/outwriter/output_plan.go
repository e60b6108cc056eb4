package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/huangsam/recap/internal/contract"
	"github.com/huangsam/recap/schema"
	"github.com/olekukonko/tablewriter"
)

// planOutput is the JSON shape of a plan.
type planOutput struct {
	Chunks []chunkView       `json:"chunks"`
	Tasks  []schema.PlanView `json:"tasks"`
}

type chunkView struct {
	ID             string `json:"id"`
	RangeStart     string `json:"range_start"`
	RangeEnd       string `json:"range_end"`
	InclusionStart string `json:"inclusion_start"`
	Cached         bool   `json:"cacheable"`
}

func newChunkViews(chunks []schema.Chunk) []chunkView {
	views := make([]chunkView, len(chunks))
	for i, c := range chunks {
		views[i] = chunkView{
			ID:             c.ID,
			RangeStart:     c.RangeStart.Format(contract.DateTimeFormat),
			RangeEnd:       c.RangeEnd.Format(contract.DateTimeFormat),
			InclusionStart: c.InclusionStart().Format(contract.DateTimeFormat),
			Cached:         c.Key.IsSome(),
		}
	}
	return views
}

// WritePlan outputs planned chunks and tasks. Formats other than JSON and CSV print tables.
func WritePlan(chunks []schema.Chunk, tasks []schema.PlanView, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, planOutput{Chunks: newChunkViews(chunks), Tasks: tasks})
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writePlanCSV(w, tasks)
		}, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writePlanTable(w, chunks, tasks)
		}, "Wrote table")
	}
}

func writePlanTable(w io.Writer, chunks []schema.Chunk, tasks []schema.PlanView) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Chunk", "Task", "Kind", "Scope", "Start", "End", "Priority", "Key"})

	var data [][]string
	for _, t := range tasks {
		key := t.CacheKey
		if len(key) > 12 {
			key = key[:12]
		}
		data = append(data, []string{
			t.ChunkID,
			t.ID,
			string(t.Kind),
			contract.TruncateText(t.Scope, 40),
			t.RangeStart.Format(contract.DateTimeFormat),
			t.RangeEnd.Format(contract.DateTimeFormat),
			strconv.Itoa(t.Priority),
			key,
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Planned %d tasks over %d chunks\n", len(tasks), len(chunks))
	return err
}

func writePlanCSV(w io.Writer, tasks []schema.PlanView) error {
	header := []string{"chunk_id", "task_id", "kind", "scope", "range_start", "range_end", "priority", "cache_key"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, t := range tasks {
			if err := cw.Write([]string{
				t.ChunkID,
				t.ID,
				string(t.Kind),
				t.Scope,
				t.RangeStart.Format(contract.DateTimeFormat),
				t.RangeEnd.Format(contract.DateTimeFormat),
				strconv.Itoa(t.Priority),
				t.CacheKey,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}
