// Package contract provides interfaces and shared utilities for the recap internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/huangsam/recap/schema"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// GitClient defines the git operations recap needs.
// This allows the collection logic to be tested without a real git executable.
type GitClient interface {
	// Run executes a git command and returns its output.
	Run(ctx context.Context, repoPath string, args ...string) ([]byte, error)

	// GetRepoRoot returns the absolute path to the root of the repository containing contextPath.
	GetRepoRoot(ctx context.Context, contextPath string) (string, error)

	// GetRepoHash returns the current HEAD commit hash of the repository.
	GetRepoHash(ctx context.Context, repoPath string) (string, error)

	// GetCommitLog returns the raw commit log with numstat for a time window.
	GetCommitLog(ctx context.Context, repoPath string, startTime, endTime time.Time) ([]byte, error)

	// CountCommits returns the number of commits in a time window.
	CountCommits(ctx context.Context, repoPath string, startTime, endTime time.Time) (int, error)
}

// CacheStore defines the in-memory store of unit results.
// None of the operations fail: a miss is a normal return value.
type CacheStore interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	SetWithSource(key string, value any, source schema.SimilarityKey)
	FindSimilar(candidate, category string, threshold float64) (any, bool)
	Stats() schema.CacheStats
	ClearExpired() int
}

// RunStore defines the interface for tracking collect runs.
type RunStore interface {
	// BeginRun creates a new run and returns its unique ID
	BeginRun(startTime time.Time, configParams map[string]any) (string, error)

	// RecordChunk stores the outcome of one chunk
	RecordChunk(record schema.ChunkRecord) error

	// EndRun updates the run with completion data
	EndRun(runID string, endTime time.Time, meta schema.Metadata) error

	// GetStatus returns status information about the run store
	GetStatus() (schema.RunStatus, error)

	// GetAllRuns returns every recorded run, newest first
	GetAllRuns() ([]schema.RunRecord, error)

	// GetAllChunkRecords returns every recorded chunk outcome
	GetAllChunkRecords() ([]schema.ChunkRecord, error)

	// Close closes the underlying connection
	Close() error
}

// ActivitySource is an upstream collaborator that returns raw activity for a task.
type ActivitySource interface {
	Name() string
	Supports(kind schema.TaskKind) bool
	Fetch(ctx context.Context, task schema.Task) ([]schema.Activity, error)
}

// ProgressReporter is notified after each chunk settles, in completion order.
type ProgressReporter interface {
	OnChunkSettled(completed, total int, chunkID string, outcome fn.Result[schema.ChunkPayload])
}

// ChunkProcessor turns one chunk into its payload. It must honor ctx cancellation
// and be idempotent enough to be cached.
type ChunkProcessor func(ctx context.Context, chunk schema.Chunk) (schema.ChunkPayload, error)
