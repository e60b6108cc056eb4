package schema

import (
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// Chunk is a time-bounded slice of a requested range.
type Chunk struct {
	ID         string
	Index      int
	RangeStart time.Time
	RangeEnd   time.Time
	Overlap    time.Duration // lookback for event inclusion only
	Status     ChunkStatus
	Key        fn.Option[string]
}

// Range returns the chunk bounds.
func (c Chunk) Range() DateRange {
	return DateRange{Start: c.RangeStart, End: c.RangeEnd}
}

// InclusionStart is the earliest event time a processor should consider.
func (c Chunk) InclusionStart() time.Time {
	return c.RangeStart.Add(-c.Overlap)
}

// InclusionRange is the window used to fetch events for the chunk.
func (c Chunk) InclusionRange() DateRange {
	return DateRange{Start: c.InclusionStart(), End: c.RangeEnd}
}

// UnitID identifies the chunk inside an executor run.
func (c Chunk) UnitID() string { return c.ID }

// CacheKey returns the cache key of the chunk, if any.
func (c Chunk) CacheKey() fn.Option[string] { return c.Key }

// Entry is one classified item produced by a chunk, before aggregation.
type Entry struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    Category  `json:"category"`
	Impact      Impact    `json:"impact"`
	Confidence  float64   `json:"confidence"`
	Authors     []string  `json:"authors,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
	Provenance  []string  `json:"provenance"`
}

// ChunkPayload is the success value of a chunk.
type ChunkPayload struct {
	Entries   map[Category][]Entry `json:"entries"`
	ItemCount int                  `json:"item_count"`
	Warnings  []string             `json:"warnings,omitempty"`
}

// EntryCount returns the number of entries over all categories.
func (p ChunkPayload) EntryCount() int {
	n := 0
	for _, entries := range p.Entries {
		n += len(entries)
	}
	return n
}

// ChunkResult is the settled outcome of one chunk.
type ChunkResult struct {
	ChunkID string
	Outcome fn.Result[ChunkPayload]
	Elapsed time.Duration
}

// ElapsedMs returns the wall-clock duration in milliseconds.
func (r ChunkResult) ElapsedMs() int64 {
	return r.Elapsed.Milliseconds()
}
