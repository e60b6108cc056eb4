package schema

import "time"

// SimilarityKey is the text a cache entry was produced from, within a category.
type SimilarityKey struct {
	Category string
	Text     string
}

// CacheStats holds monotonic cache counters and the current size.
type CacheStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
}

// HitRate returns hits over lookups, or zero before the first lookup.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// RunRecord represents a row from the recap_runs table.
type RunRecord struct {
	RunID         string
	StartTime     time.Time
	EndTime       *time.Time
	RunDurationMs *int64
	TotalChunks   int32
	Succeeded     int32
	Failed        int32
	ConfigParams  *string
}

// ChunkRecord represents a row from the recap_chunk_results table.
type ChunkRecord struct {
	RunID      string
	ChunkID    string
	RangeStart time.Time
	RangeEnd   time.Time
	Status     ChunkStatus
	ElapsedMs  int64
	EntryCount int32
	ErrorText  *string
}

// RunStatus represents the status of the run history store.
type RunStatus struct {
	Backend       string           `json:"backend"`
	Connected     bool             `json:"connected"`
	TotalRuns     int              `json:"total_runs"`
	TotalChunks   int              `json:"total_chunks"`
	LastRunID     string           `json:"last_run_id"`
	LastRunTime   time.Time        `json:"last_run_time"`
	OldestRunTime time.Time        `json:"oldest_run_time"`
	TableSizes    map[string]int64 `json:"table_sizes"`
}
