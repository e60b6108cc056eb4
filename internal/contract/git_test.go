package contract

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skipIfGitNotAvailable skips the test if git binary is not found in PATH
func skipIfGitNotAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skipf("git binary not found in PATH: %v", err)
	}
}

// initTestRepo creates a repository with one commit per given date.
func initTestRepo(t *testing.T, dates ...time.Time) string {
	t.Helper()
	dir := t.TempDir()
	git := func(env []string, args ...string) {
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		cmd.Env = append(os.Environ(), env...)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	git(nil, "init", "-q")
	git(nil, "config", "user.email", "dev@example.com")
	git(nil, "config", "user.name", "Dev Example")
	git(nil, "config", "commit.gpgsign", "false")

	for i, d := range dates {
		name := filepath.Join(dir, "file.txt")
		require.NoError(t, os.WriteFile(name, []byte(strings.Repeat("x\n", i+1)), 0o644))
		git(nil, "add", ".")
		stamp := d.Format(time.RFC3339)
		git([]string{"GIT_AUTHOR_DATE=" + stamp, "GIT_COMMITTER_DATE=" + stamp},
			"commit", "-q", "-m", "feat: change "+d.Format(time.DateOnly))
	}
	return dir
}

func TestLocalGitClient(t *testing.T) {
	skipIfGitNotAvailable(t)

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	dir := initTestRepo(t, base, base.AddDate(0, 0, 3), base.AddDate(0, 0, 10))
	client := NewLocalGitClient()
	ctx := context.Background()

	root, err := client.GetRepoRoot(ctx, dir)
	require.NoError(t, err)
	resolved, _ := filepath.EvalSymlinks(dir)
	assert.Equal(t, resolved, root)

	hash, err := client.GetRepoHash(ctx, dir)
	require.NoError(t, err)
	assert.Len(t, hash, 40)

	count, err := client.CountCommits(ctx, dir, base.Add(-time.Hour), base.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	out, err := client.GetCommitLog(ctx, dir, base.AddDate(0, 0, 9), base.AddDate(0, 0, 11))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(out), "--"), "one commit header in window")
	assert.Contains(t, string(out), "feat: change 2025-01-11")
}

func TestLocalGitClientErrors(t *testing.T) {
	skipIfGitNotAvailable(t)

	client := NewLocalGitClient()
	_, err := client.GetRepoRoot(context.Background(), "/nonexistent/path")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.Run(ctx, t.TempDir(), "status")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMockGitClientRun(t *testing.T) {
	client := new(MockGitClient)
	ctx := context.Background()
	client.On("Run", ctx, "/repo", "log", "-1").Return([]byte("abc"), nil).Once()

	out, err := client.Run(ctx, "/repo", "log", "-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), out)
	client.AssertExpectations(t)
}
