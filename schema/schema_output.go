package schema

import (
	"slices"
	"time"
)

// AggregatedEntry is a deduplicated, ranked output item.
type AggregatedEntry struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    Category  `json:"category"`
	Impact      Impact    `json:"impact"`
	Confidence  float64   `json:"confidence"`
	ImpactScore float64   `json:"impact_score"`
	Authors     []string  `json:"authors,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
	Provenance  []string  `json:"provenance"`
}

// Metadata describes how an aggregated document was produced.
type Metadata struct {
	TotalChunks    int              `json:"total_chunks"`
	Succeeded      int              `json:"succeeded"`
	Failed         int              `json:"failed"`
	Warnings       []string         `json:"warnings,omitempty"`
	ElapsedMs      int64            `json:"elapsed_ms"`
	RangeStart     time.Time        `json:"range_start"`
	RangeEnd       time.Time        `json:"range_end"`
	Incomplete     bool             `json:"incomplete"`
	CategoryCounts map[Category]int `json:"category_counts"`
}

// AggregatedDocument is the only externally visible result of a collect run.
type AggregatedDocument struct {
	Entries  map[Category][]AggregatedEntry `json:"entries"`
	Metadata Metadata                       `json:"metadata"`
}

// Categories returns the non-empty categories: built-in ones first, then the rest sorted.
func (d *AggregatedDocument) Categories() []Category {
	var out []Category
	for _, c := range CategoryOrder {
		if len(d.Entries[c]) > 0 {
			out = append(out, c)
		}
	}
	var extra []Category
	for c, entries := range d.Entries {
		if len(entries) > 0 && !slices.Contains(CategoryOrder, c) {
			extra = append(extra, c)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}

// Flatten returns all entries in category order, each bucket in rank order.
func (d *AggregatedDocument) Flatten() []AggregatedEntry {
	var out []AggregatedEntry
	for _, c := range d.Categories() {
		out = append(out, d.Entries[c]...)
	}
	return out
}

// Truncate keeps at most limit entries per category. A limit <= 0 keeps everything.
func (d *AggregatedDocument) Truncate(limit int) {
	if limit <= 0 {
		return
	}
	for c, entries := range d.Entries {
		if len(entries) > limit {
			d.Entries[c] = entries[:limit]
		}
	}
}

// GetPlainLabel returns a plain text label for an impact score.
func GetPlainLabel(score float64) string {
	switch {
	case score >= 2.4:
		return "Major"
	case score >= 1.2:
		return "Notable"
	default:
		return "Minor"
	}
}

// PlanView is the printable form of a planned task.
type PlanView struct {
	ID         string    `json:"id"`
	Kind       TaskKind  `json:"kind"`
	Scope      string    `json:"scope,omitempty"`
	RangeStart time.Time `json:"range_start"`
	RangeEnd   time.Time `json:"range_end"`
	CacheKey   string    `json:"cache_key,omitempty"`
	Priority   int       `json:"priority"`
	ChunkID    string    `json:"chunk_id"`
}

// NewPlanView flattens a task for output.
func NewPlanView(chunkID string, t Task) PlanView {
	return PlanView{
		ID:         t.ID,
		Kind:       t.Kind(),
		Scope:      t.ScopeKey,
		RangeStart: t.RangeStart,
		RangeEnd:   t.RangeEnd,
		CacheKey:   t.Key.UnwrapOr(""),
		Priority:   t.Priority,
		ChunkID:    chunkID,
	}
}
