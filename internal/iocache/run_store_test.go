package iocache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/recap/internal/parquet"
	"github.com/huangsam/recap/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) (*RunStoreImpl, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	store, err := NewRunStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, dbPath
}

func TestRunStore_NoneBackend(t *testing.T) {
	store, err := NewRunStore(schema.NoneBackend, "")
	require.NoError(t, err)

	runID, err := store.BeginRun(time.Now(), map[string]any{"test": "value"})
	assert.NoError(t, err)
	assert.Empty(t, runID)

	assert.NoError(t, store.RecordChunk(schema.ChunkRecord{RunID: "x", ChunkID: "chunk-1"}))
	assert.NoError(t, store.EndRun("x", time.Now(), schema.Metadata{}))

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.Equal(t, "none", status.Backend)

	runs, err := store.GetAllRuns()
	assert.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, store.Close())
}

func TestRunStore_UnsupportedBackend(t *testing.T) {
	_, err := NewRunStore("oracle", "")
	assert.ErrorContains(t, err, "unsupported backend")
}

func TestRunStore_SQLiteLifecycle(t *testing.T) {
	store, _ := newSQLiteStore(t)
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	runID, err := store.BeginRun(start, map[string]any{"chunk_days": 7})
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	errText := "chunk chunk-2: task timed out"
	records := []schema.ChunkRecord{
		{
			RunID: runID, ChunkID: "chunk-1",
			RangeStart: start.AddDate(0, 0, -14), RangeEnd: start.AddDate(0, 0, -7),
			Status: schema.ChunkSucceeded, ElapsedMs: 120, EntryCount: 4,
		},
		{
			RunID: runID, ChunkID: "chunk-2",
			RangeStart: start.AddDate(0, 0, -7), RangeEnd: start,
			Status: schema.ChunkFailed, ElapsedMs: 2000, ErrorText: &errText,
		},
	}
	for _, r := range records {
		require.NoError(t, store.RecordChunk(r))
	}

	end := start.Add(3 * time.Second)
	require.NoError(t, store.EndRun(runID, end, schema.Metadata{TotalChunks: 2, Succeeded: 1, Failed: 1}))

	runs, err := store.GetAllRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	run := runs[0]
	assert.Equal(t, runID, run.RunID)
	assert.True(t, start.Equal(run.StartTime))
	require.NotNil(t, run.EndTime)
	assert.True(t, end.Equal(*run.EndTime))
	require.NotNil(t, run.RunDurationMs)
	assert.Equal(t, int64(3000), *run.RunDurationMs)
	assert.Equal(t, int32(2), run.TotalChunks)
	assert.Equal(t, int32(1), run.Succeeded)
	assert.Equal(t, int32(1), run.Failed)
	require.NotNil(t, run.ConfigParams)
	assert.JSONEq(t, `{"chunk_days":7}`, *run.ConfigParams)

	chunks, err := store.GetAllChunkRecords()
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "chunk-1", chunks[0].ChunkID)
	assert.Equal(t, schema.ChunkSucceeded, chunks[0].Status)
	assert.Nil(t, chunks[0].ErrorText)
	assert.Equal(t, "chunk-2", chunks[1].ChunkID)
	assert.Equal(t, schema.ChunkFailed, chunks[1].Status)
	require.NotNil(t, chunks[1].ErrorText)
	assert.Equal(t, errText, *chunks[1].ErrorText)
	assert.True(t, records[1].RangeEnd.Equal(chunks[1].RangeEnd))

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, 1, status.TotalRuns)
	assert.Equal(t, 2, status.TotalChunks)
	assert.Equal(t, runID, status.LastRunID)
	assert.True(t, start.Equal(status.LastRunTime))
	assert.Equal(t, int64(1), status.TableSizes[runsTable])
	assert.Equal(t, int64(2), status.TableSizes[chunkResultsTable])
}

func TestRunStore_RunsNewestFirst(t *testing.T) {
	store, _ := newSQLiteStore(t)
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	var ids []string
	for i := range 3 {
		// Sub-second offsets check that text timestamps still sort by time
		id, err := store.BeginRun(base.Add(time.Duration(i)*500*time.Millisecond), nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	runs, err := store.GetAllRuns()
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{runs[0].RunID, runs[1].RunID, runs[2].RunID})
	assert.Nil(t, runs[0].EndTime)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, ids[2], status.LastRunID)
	assert.True(t, base.Equal(status.OldestRunTime))
}

func TestRunStore_EndUnknownRun(t *testing.T) {
	store, _ := newSQLiteStore(t)
	err := store.EndRun("missing", time.Now(), schema.Metadata{})
	assert.ErrorContains(t, err, "failed to get start_time")
}

func TestRunStore_DuplicateChunkRejected(t *testing.T) {
	store, _ := newSQLiteStore(t)
	runID, err := store.BeginRun(time.Now(), nil)
	require.NoError(t, err)

	rec := schema.ChunkRecord{RunID: runID, ChunkID: "chunk-1", RangeStart: time.Now(), RangeEnd: time.Now(), Status: schema.ChunkSucceeded}
	require.NoError(t, store.RecordChunk(rec))
	assert.Error(t, store.RecordChunk(rec))
}

func TestMigrateRuns(t *testing.T) {
	t.Run("none backend", func(t *testing.T) {
		err := MigrateRuns(&bytes.Buffer{}, schema.NoneBackend, "", -1)
		assert.ErrorContains(t, err, "migrations are not supported for NoneBackend")
	})

	t.Run("unknown version", func(t *testing.T) {
		err := MigrateRuns(&bytes.Buffer{}, schema.SQLiteBackend, ":memory:", LatestRunVersion+1)
		assert.ErrorContains(t, err, "unknown migration version")
	})

	t.Run("sqlite up and down", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "migrate.db")
		var out bytes.Buffer

		require.NoError(t, MigrateRuns(&out, schema.SQLiteBackend, dbPath, -1))
		assert.Contains(t, out.String(), "to version 2")

		out.Reset()
		require.NoError(t, MigrateRuns(&out, schema.SQLiteBackend, dbPath, -1))
		assert.Contains(t, out.String(), "already at the latest version")

		require.NoError(t, MigrateRuns(&out, schema.SQLiteBackend, dbPath, 1))
		require.NoError(t, MigrateRuns(&out, schema.SQLiteBackend, dbPath, 0))
		require.NoError(t, MigrateRuns(&out, schema.SQLiteBackend, dbPath, 1))

		// The store works on top of a migrated database
		store, err := NewRunStore(schema.SQLiteBackend, dbPath)
		require.NoError(t, err)
		defer func() { _ = store.Close() }()
		_, err = store.BeginRun(time.Now(), nil)
		assert.NoError(t, err)
	})
}

func TestClearRuns(t *testing.T) {
	assert.NoError(t, ClearRuns(schema.NoneBackend, "", ""))
	assert.Error(t, ClearRuns(schema.SQLiteBackend, "", ""))
	assert.Error(t, ClearRuns("oracle", "", ""))

	dbPath := filepath.Join(t.TempDir(), "clear.db")
	store, err := NewRunStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	require.NoError(t, ClearRuns(schema.SQLiteBackend, dbPath, ""))
	_, err = os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err))

	// Clearing twice is fine
	assert.NoError(t, ClearRuns(schema.SQLiteBackend, dbPath, ""))
}

func TestPrintRunStatus(t *testing.T) {
	var buf bytes.Buffer
	PrintRunStatus(&buf, schema.RunStatus{Backend: "none"})
	assert.Equal(t, "Run Backend: none\nConnected: false\n", buf.String())

	buf.Reset()
	PrintRunStatus(&buf, schema.RunStatus{
		Backend:    "sqlite",
		Connected:  true,
		TotalRuns:  2,
		LastRunID:  "abc",
		TableSizes: map[string]int64{chunkResultsTable: 5, runsTable: 2},
	})
	out := buf.String()
	assert.Contains(t, out, "Last Run ID: abc")
	assert.Contains(t, out, "Table Sizes:\n  recap_chunk_results: 5 rows\n  recap_runs: 2 rows\n")
}

func TestPrintCacheStats(t *testing.T) {
	var buf bytes.Buffer
	PrintCacheStats(&buf, schema.CacheStats{Hits: 3, Misses: 1, Size: 2})
	assert.Contains(t, buf.String(), "Hit Rate: 75.0%")
}

func TestExecuteRunExport(t *testing.T) {
	store, _ := newSQLiteStore(t)

	assert.ErrorContains(t, ExecuteRunExport(&bytes.Buffer{}, store, ""), "--output-file is required")
	assert.ErrorContains(t, ExecuteRunExport(&bytes.Buffer{}, store, "x"), "no run data")

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	runID, err := store.BeginRun(start, map[string]any{"query": "auth"})
	require.NoError(t, err)
	require.NoError(t, store.RecordChunk(schema.ChunkRecord{
		RunID: runID, ChunkID: "chunk-1", RangeStart: start, RangeEnd: start.Add(time.Hour),
		Status: schema.ChunkSucceeded, EntryCount: 3,
	}))
	require.NoError(t, store.EndRun(runID, start.Add(time.Minute), schema.Metadata{TotalChunks: 1, Succeeded: 1}))

	base := filepath.Join(t.TempDir(), "history")
	var out bytes.Buffer
	require.NoError(t, ExecuteRunExport(&out, store, base))
	assert.Contains(t, out.String(), "Exported 1 runs")

	runs, err := parquet.ReadFile[parquet.Run](base + ".runs.parquet")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].RunID)

	chunks, err := parquet.ReadFile[parquet.ChunkResult](base + ".chunk_results.parquet")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, int32(3), chunks[0].EntryCount)
	assert.Equal(t, "succeeded", chunks[0].Status)
}
