package mcp_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/huangsam/recap/core"
	"github.com/huangsam/recap/internal/contract"
	"github.com/huangsam/recap/internal/iocache"
	mcp_internal "github.com/huangsam/recap/internal/mcp"
	"github.com/huangsam/recap/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func baseConfig() *contract.Config {
	return &contract.Config{
		WorkingRepo:         ".",
		StartTime:           time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndTime:             time.Date(2025, 1, 22, 0, 0, 0, 0, time.UTC),
		ChunkSizeDays:       7,
		SplitDays:           7,
		MaxConcurrency:      2,
		MaxConcurrentChunks: 2,
		Timeout:             time.Second,
		ChunkTimeout:        5 * time.Second,
		SimilarityThreshold: 0.8,
		DedupBy:             schema.DedupByTitle,
		DedupKeep:           schema.KeepFirst,
		IncrementalDays:     14,
		IncrementalVolume:   1000,
		ResultLimit:         10,
	}
}

func newSource() *contract.MockActivitySource {
	src := &contract.MockActivitySource{}
	src.On("Name").Return("mock").Maybe()
	src.On("Supports", schema.GeneralKind).Return(true).Maybe()
	src.On("Supports", mock.Anything).Return(false).Maybe()
	src.On("Fetch", mock.Anything, mock.Anything).Return([]schema.Activity{{
		ID:         "c1",
		Kind:       schema.CommitsKind,
		Scope:      ".",
		Title:      "feat: add recap tool",
		Author:     "Alice",
		OccurredAt: time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
	}}, nil).Maybe()
	return src
}

func call(t *testing.T, tool string, args map[string]any, deps core.Deps) *mcp.CallToolResult {
	t.Helper()
	s := mcp_internal.NewMCPServer(baseConfig(), deps)
	st := s.GetTool(tool)
	require.NotNil(t, st, "Tool %s should exist", tool)

	res, err := st.Handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: tool, Arguments: args},
	})
	require.NoError(t, err, "The MCP handler should not return a raw error for tool logic failures")
	return res
}

func text(res *mcp.CallToolResult) string {
	return res.Content[0].(mcp.TextContent).Text
}

func TestMCPServerHandlers_ValidationErrors(t *testing.T) {
	deps := core.Deps{Sources: []contract.ActivitySource{newSource()}}

	t.Run("collect_recap invalid start", func(t *testing.T) {
		res := call(t, "collect_recap", map[string]any{"start": "sometime"}, deps)
		assert.True(t, res.IsError)
		assert.Contains(t, text(res), "invalid start")
	})

	t.Run("collect_recap inverted range", func(t *testing.T) {
		res := call(t, "collect_recap", map[string]any{"start": "2025-02-01", "end": "2025-01-01"}, deps)
		assert.True(t, res.IsError)
		assert.Contains(t, text(res), "invalid range")
	})

	t.Run("plan_tasks negative chunk_days", func(t *testing.T) {
		res := call(t, "plan_tasks", map[string]any{"chunk_days": -2.0}, deps)
		assert.True(t, res.IsError)
		assert.Contains(t, text(res), "chunk_days must be at least 1")
	})

	t.Run("cache_stats without cache", func(t *testing.T) {
		res := call(t, "cache_stats", nil, deps)
		assert.True(t, res.IsError)
		assert.Contains(t, text(res), "cache is disabled")
	})
}

func TestMCPServerHandlers_Results(t *testing.T) {
	cache := iocache.NewMemoryStore(iocache.MemoryOptions{TTL: time.Hour, MaxSize: 50})
	deps := core.Deps{Sources: []contract.ActivitySource{newSource()}, Cache: cache}

	t.Run("collect_recap", func(t *testing.T) {
		res := call(t, "collect_recap", nil, deps)
		require.False(t, res.IsError, text(res))

		var doc schema.AggregatedDocument
		require.NoError(t, json.Unmarshal([]byte(text(res)), &doc))
		assert.Equal(t, 3, doc.Metadata.TotalChunks)
		require.Len(t, doc.Entries[schema.FeatureCategory], 1)
		assert.Equal(t, "Add recap tool", doc.Entries[schema.FeatureCategory][0].Title)
	})

	t.Run("plan_tasks", func(t *testing.T) {
		res := call(t, "plan_tasks", map[string]any{"chunk_days": 14.0}, deps)
		require.False(t, res.IsError, text(res))

		var out struct {
			Chunked bool              `json:"chunked"`
			Chunks  int               `json:"chunks"`
			Tasks   []schema.PlanView `json:"tasks"`
		}
		require.NoError(t, json.Unmarshal([]byte(text(res)), &out))
		assert.True(t, out.Chunked)
		assert.Equal(t, 2, out.Chunks)
		assert.Len(t, out.Tasks, 2)
	})

	t.Run("cache_stats sees earlier calls", func(t *testing.T) {
		res := call(t, "cache_stats", nil, deps)
		require.False(t, res.IsError)

		var stats schema.CacheStats
		require.NoError(t, json.Unmarshal([]byte(text(res)), &stats))
		assert.Positive(t, stats.Misses)
		assert.Positive(t, stats.Size)
	})
}
