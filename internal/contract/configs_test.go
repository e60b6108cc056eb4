package contract

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/recap/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// validInput mirrors the defaults registered by the CLI.
func validInput() *ConfigRawInput {
	return &ConfigRawInput{
		Start:               "2025-01-01",
		End:                 "2025-01-22",
		ChunkDays:           DefaultChunkSizeDays,
		SplitDays:           DefaultSplitDays,
		MaxConcurrency:      4,
		MaxConcurrentChunks: DefaultMaxConcurrentChunks,
		Timeout:             "30s",
		ChunkTimeout:        "2m",
		RunTimeout:          "0",
		Overlap:             "0",
		CacheTTL:            "1h",
		CacheMaxSize:        DefaultCacheMaxSize,
		CacheSweep:          "5m",
		SimilarityThreshold: DefaultSimilarityThreshold,
		DedupBy:             "title",
		DedupKeep:           "first",
		IncrementalDays:     DefaultIncrementalDays,
		IncrementalVolume:   DefaultIncrementalVolume,
		Limit:               DefaultResultLimit,
		Precision:           DefaultPrecision,
		Output:              "text",
		Color:               "yes",
		Progress:            "no",
		LogLevel:            "info",
		LogFormat:           "text",
		RunBackend:          "none",
	}
}

func TestProcessAndValidate(t *testing.T) {
	ctx := context.Background()
	client := &MockGitClient{}
	client.On("GetRepoRoot", ctx, mock.Anything).Return("/repo", nil)

	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(ctx, cfg, client, validInput()))

	assert.Equal(t, "/repo", cfg.WorkingRepo)
	assert.Empty(t, cfg.Scopes, "no positional paths means general tasks")
	assert.Equal(t, 7, cfg.ChunkSizeDays)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Zero(t, cfg.RunTimeout)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, schema.KeepFirst, cfg.DedupKeep)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.True(t, cfg.UseColors)
	assert.False(t, cfg.Progress)
	assert.Equal(t, 21, cfg.Range().Days())
}

func TestProcessAndValidateScopes(t *testing.T) {
	ctx := context.Background()
	client := &MockGitClient{}
	a, _ := filepath.Abs("a")
	b, _ := filepath.Abs("b")
	client.On("GetRepoRoot", ctx, a).Return("/repo-a", nil)
	client.On("GetRepoRoot", ctx, b).Return("/repo-b", nil)

	input := validInput()
	input.RepoPathStrs = []string{"a", "b", "a"}
	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(ctx, cfg, client, input))

	assert.Equal(t, "/repo-a", cfg.WorkingRepo)
	assert.Equal(t, []schema.Scope{
		{Kind: schema.RepositoryScope, Key: "/repo-a"},
		{Kind: schema.RepositoryScope, Key: "/repo-b"},
	}, cfg.Scopes)
}

func TestProcessAndValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ConfigRawInput)
		errMsg string
	}{
		{"zero chunk days", func(i *ConfigRawInput) { i.ChunkDays = 0 }, "chunk-days"},
		{"zero concurrency", func(i *ConfigRawInput) { i.MaxConcurrency = 0 }, "max-concurrency"},
		{"zero chunk concurrency", func(i *ConfigRawInput) { i.MaxConcurrentChunks = 0 }, "max-concurrent-chunks"},
		{"bad timeout", func(i *ConfigRawInput) { i.Timeout = "soon" }, "--timeout"},
		{"zero timeout", func(i *ConfigRawInput) { i.Timeout = "0s" }, "--timeout"},
		{"negative cache size", func(i *ConfigRawInput) { i.CacheMaxSize = -1 }, "cache-max-size"},
		{"zero threshold", func(i *ConfigRawInput) { i.SimilarityThreshold = 0 }, "similarity-threshold"},
		{"threshold above one", func(i *ConfigRawInput) { i.SimilarityThreshold = 1.5 }, "similarity-threshold"},
		{"unknown dedup field", func(i *ConfigRawInput) { i.DedupBy = "body" }, "dedup-by"},
		{"unknown keep policy", func(i *ConfigRawInput) { i.DedupKeep = "latest" }, "dedup-keep"},
		{"bad output", func(i *ConfigRawInput) { i.Output = "yaml" }, "output format"},
		{"xlsx without file", func(i *ConfigRawInput) { i.Output = "xlsx" }, "--output-file"},
		{"bad color", func(i *ConfigRawInput) { i.Color = "maybe" }, "--color"},
		{"bad log level", func(i *ConfigRawInput) { i.LogLevel = "loud" }, "log level"},
		{"bad backend", func(i *ConfigRawInput) { i.RunBackend = "redis" }, "run backend"},
		{"mysql without dsn", func(i *ConfigRawInput) { i.RunBackend = "mysql" }, "run-db-connect"},
		{"inverted range", func(i *ConfigRawInput) { i.Start, i.End = "2025-02-01", "2025-01-01" }, "invalid range"},
		{"garbage start", func(i *ConfigRawInput) { i.Start = "yesterday-ish" }, "invalid start"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &MockGitClient{}
			client.On("GetRepoRoot", mock.Anything, mock.Anything).Return("/repo", nil)
			input := validInput()
			tt.mutate(input)
			err := ProcessAndValidate(context.Background(), &Config{}, client, input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidateDatabaseConnectionString(t *testing.T) {
	assert.NoError(t, ValidateDatabaseConnectionString(schema.SQLiteBackend, ""))
	assert.NoError(t, ValidateDatabaseConnectionString(schema.MySQLBackend, "u:p@tcp(localhost:3306)/recap"))
	assert.Error(t, ValidateDatabaseConnectionString(schema.MySQLBackend, "localhost"))
	assert.NoError(t, ValidateDatabaseConnectionString(schema.PostgreSQLBackend, "host=localhost dbname=recap"))
	assert.Error(t, ValidateDatabaseConnectionString(schema.PostgreSQLBackend, "host=localhost"))
}

func TestConfigClone(t *testing.T) {
	cfg := &Config{Scopes: []schema.Scope{{Kind: schema.RepositoryScope, Key: "/a"}}}
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clone := cfg.CloneWithTimeWindow(start, start.AddDate(0, 0, 1))

	clone.Scopes[0].Key = "/b"
	assert.Equal(t, "/a", cfg.Scopes[0].Key)
	assert.Equal(t, start, clone.StartTime)
	assert.True(t, cfg.StartTime.IsZero())

	params := clone.ConfigParams()
	assert.Equal(t, []string{"/b"}, params["scopes"])
}
