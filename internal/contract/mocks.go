package contract

import (
	"context"
	"time"

	"github.com/huangsam/recap/schema"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/mock"
)

// MockGitClient is a mock implementation of GitClient for testing.
type MockGitClient struct {
	mock.Mock
}

var _ GitClient = &MockGitClient{} // Compile-time check

// Run implements the GitClient interface.
func (m *MockGitClient) Run(ctx context.Context, repoPath string, args ...string) ([]byte, error) {
	mockArgs := []any{ctx, repoPath}
	for _, arg := range args {
		mockArgs = append(mockArgs, arg)
	}
	ret := m.Called(mockArgs...)
	output, _ := ret.Get(0).([]byte)
	return output, ret.Error(1)
}

// GetRepoRoot implements the GitClient interface.
func (m *MockGitClient) GetRepoRoot(ctx context.Context, contextPath string) (string, error) {
	ret := m.Called(ctx, contextPath)
	return ret.String(0), ret.Error(1)
}

// GetRepoHash implements the GitClient interface.
func (m *MockGitClient) GetRepoHash(ctx context.Context, repoPath string) (string, error) {
	ret := m.Called(ctx, repoPath)
	return ret.String(0), ret.Error(1)
}

// GetCommitLog implements the GitClient interface.
func (m *MockGitClient) GetCommitLog(ctx context.Context, repoPath string, startTime, endTime time.Time) ([]byte, error) {
	ret := m.Called(ctx, repoPath, startTime, endTime)
	output, _ := ret.Get(0).([]byte)
	return output, ret.Error(1)
}

// CountCommits implements the GitClient interface.
func (m *MockGitClient) CountCommits(ctx context.Context, repoPath string, startTime, endTime time.Time) (int, error) {
	ret := m.Called(ctx, repoPath, startTime, endTime)
	return ret.Int(0), ret.Error(1)
}

// MockActivitySource is a mock implementation of ActivitySource for testing.
type MockActivitySource struct {
	mock.Mock
}

var _ ActivitySource = &MockActivitySource{} // Compile-time check

// Name implements the ActivitySource interface.
func (m *MockActivitySource) Name() string {
	return m.Called().String(0)
}

// Supports implements the ActivitySource interface.
func (m *MockActivitySource) Supports(kind schema.TaskKind) bool {
	return m.Called(kind).Bool(0)
}

// Fetch implements the ActivitySource interface.
func (m *MockActivitySource) Fetch(ctx context.Context, task schema.Task) ([]schema.Activity, error) {
	ret := m.Called(ctx, task)
	activities, _ := ret.Get(0).([]schema.Activity)
	return activities, ret.Error(1)
}

// MockProgressReporter is a mock implementation of ProgressReporter for testing.
type MockProgressReporter struct {
	mock.Mock
}

var _ ProgressReporter = &MockProgressReporter{} // Compile-time check

// OnChunkSettled implements the ProgressReporter interface.
func (m *MockProgressReporter) OnChunkSettled(completed, total int, chunkID string, outcome fn.Result[schema.ChunkPayload]) {
	m.Called(completed, total, chunkID, outcome)
}

// MockRunStore is a mock implementation of RunStore for testing.
type MockRunStore struct {
	mock.Mock
}

var _ RunStore = &MockRunStore{} // Compile-time check

// BeginRun implements the RunStore interface.
func (m *MockRunStore) BeginRun(startTime time.Time, configParams map[string]any) (string, error) {
	ret := m.Called(startTime, configParams)
	return ret.String(0), ret.Error(1)
}

// RecordChunk implements the RunStore interface.
func (m *MockRunStore) RecordChunk(record schema.ChunkRecord) error {
	return m.Called(record).Error(0)
}

// EndRun implements the RunStore interface.
func (m *MockRunStore) EndRun(runID string, endTime time.Time, meta schema.Metadata) error {
	return m.Called(runID, endTime, meta).Error(0)
}

// GetStatus implements the RunStore interface.
func (m *MockRunStore) GetStatus() (schema.RunStatus, error) {
	ret := m.Called()
	status, _ := ret.Get(0).(schema.RunStatus)
	return status, ret.Error(1)
}

// GetAllRuns implements the RunStore interface.
func (m *MockRunStore) GetAllRuns() ([]schema.RunRecord, error) {
	ret := m.Called()
	runs, _ := ret.Get(0).([]schema.RunRecord)
	return runs, ret.Error(1)
}

// GetAllChunkRecords implements the RunStore interface.
func (m *MockRunStore) GetAllChunkRecords() ([]schema.ChunkRecord, error) {
	ret := m.Called()
	records, _ := ret.Get(0).([]schema.ChunkRecord)
	return records, ret.Error(1)
}

// Close implements the RunStore interface.
func (m *MockRunStore) Close() error {
	return m.Called().Error(0)
}
