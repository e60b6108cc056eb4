package outwriter

import (
	"fmt"
	"io"
	"strconv"

	"github.com/huangsam/recap/internal/contract"
	"github.com/huangsam/recap/schema"
	"github.com/olekukonko/tablewriter"
)

// runView is the printable form of a run record.
type runView struct {
	RunID      string `json:"run_id"`
	StartTime  string `json:"start_time"`
	DurationMs *int64 `json:"duration_ms,omitempty"`
	Chunks     int32  `json:"total_chunks"`
	Succeeded  int32  `json:"succeeded"`
	Failed     int32  `json:"failed"`
	Finished   bool   `json:"finished"`
}

// WriteRuns outputs the run history. JSON is supported; everything else prints a table.
func WriteRuns(runs []schema.RunRecord, cfg *contract.Config) error {
	views := make([]runView, len(runs))
	for i, r := range runs {
		views[i] = runView{
			RunID:      r.RunID,
			StartTime:  r.StartTime.Format(contract.DateTimeFormat),
			DurationMs: r.RunDurationMs,
			Chunks:     r.TotalChunks,
			Succeeded:  r.Succeeded,
			Failed:     r.Failed,
			Finished:   r.EndTime != nil,
		}
	}

	if cfg.Output == schema.JSONOut {
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, views)
		}, "Wrote JSON")
	}
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeRunsTable(w, views)
	}, "Wrote table")
}

func writeRunsTable(w io.Writer, views []runView) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Run", "Started", "Duration", "Chunks", "Status"})

	var data [][]string
	for _, v := range views {
		duration := "running"
		if v.DurationMs != nil {
			duration = fmt.Sprintf("%dms", *v.DurationMs)
		}
		status := schema.ChunkSucceeded
		if v.Failed > 0 {
			status = schema.ChunkFailed
		}
		data = append(data, []string{
			v.RunID,
			v.StartTime,
			duration,
			strconv.Itoa(int(v.Succeeded)) + "/" + strconv.Itoa(int(v.Chunks)),
			contract.GetStatusLabel(status),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
