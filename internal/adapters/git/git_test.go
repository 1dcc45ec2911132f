package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ocswarm/internal/models"
)

var testIdent = models.GitIdentity{Name: "tester", Email: "tester@localhost"}

// initRepo creates a git repo with one commit on main.
func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	repo := t.TempDir()
	mustGit(t, repo, "init", "-b", "main")
	mustGit(t, repo, "config", "user.name", "tester")
	mustGit(t, repo, "config", "user.email", "tester@localhost")

	require.NoError(t, os.WriteFile(filepath.Join(repo, "README.md"), []byte("hello\n"), 0644))
	mustGit(t, repo, "add", "-A")
	mustGit(t, repo, "commit", "-m", "initial")
	return repo
}

func mustGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
	return string(out)
}

func TestWorktreeLifecycle(t *testing.T) {
	w := NewWorkspace()
	ctx := context.Background()
	repo := initRepo(t)

	lane := filepath.Join(t.TempDir(), "lane-a")
	require.NoError(t, w.AddWorktree(ctx, repo, "lane/a", "main", lane))
	assert.FileExists(t, filepath.Join(lane, "README.md"))

	require.NoError(t, w.RemoveWorktree(ctx, repo, lane))
	assert.NoDirExists(t, lane)
	require.NoError(t, w.DeleteBranch(ctx, repo, "lane/a"))
}

func TestAddWorktreeMissingRepo(t *testing.T) {
	w := NewWorkspace()
	err := w.AddWorktree(context.Background(), filepath.Join(t.TempDir(), "nope"), "b", "main", t.TempDir())
	assert.ErrorContains(t, err, "not found")
}

func TestCommitAllSkipsCleanTree(t *testing.T) {
	w := NewWorkspace()
	ctx := context.Background()
	repo := initRepo(t)

	commit, changed, err := w.CommitAll(ctx, repo, "noop", testIdent)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, commit)

	require.NoError(t, os.WriteFile(filepath.Join(repo, "feature.txt"), []byte("work\n"), 0644))
	commit, changed, err = w.CommitAll(ctx, repo, "add feature", testIdent)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Len(t, commit, 40)
}

func TestChangedFiles(t *testing.T) {
	w := NewWorkspace()
	ctx := context.Background()
	repo := initRepo(t)

	lane := filepath.Join(t.TempDir(), "lane-a")
	require.NoError(t, w.AddWorktree(ctx, repo, "lane/a", "main", lane))

	require.NoError(t, os.WriteFile(filepath.Join(lane, "committed.txt"), []byte("a\n"), 0644))
	_, _, err := w.CommitAll(ctx, lane, "committed change", testIdent)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(lane, "pending.txt"), []byte("b\n"), 0644))

	files, err := w.ChangedFiles(ctx, lane, "main")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"committed.txt", "pending.txt"}, files)
}

func TestMergeCleanAndConflict(t *testing.T) {
	w := NewWorkspace()
	ctx := context.Background()
	repo := initRepo(t)

	root := t.TempDir()
	integration := filepath.Join(root, "integration")
	laneA := filepath.Join(root, "lane-a")
	laneB := filepath.Join(root, "lane-b")
	require.NoError(t, w.AddWorktree(ctx, repo, "integration", "main", integration))
	require.NoError(t, w.AddWorktree(ctx, repo, "lane/a", "main", laneA))
	require.NoError(t, w.AddWorktree(ctx, repo, "lane/b", "main", laneB))

	// Both lanes edit the same file: first merge lands, second conflicts.
	require.NoError(t, os.WriteFile(filepath.Join(laneA, "shared.txt"), []byte("from a\n"), 0644))
	_, _, err := w.CommitAll(ctx, laneA, "lane a change", testIdent)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(laneB, "shared.txt"), []byte("from b\n"), 0644))
	_, _, err = w.CommitAll(ctx, laneB, "lane b change", testIdent)
	require.NoError(t, err)

	outcome, err := w.Merge(ctx, integration, "lane/a", testIdent)
	require.NoError(t, err)
	assert.False(t, outcome.Conflict)
	assert.Len(t, outcome.Commit, 40)

	outcome, err = w.Merge(ctx, integration, "lane/b", testIdent)
	require.NoError(t, err)
	assert.True(t, outcome.Conflict)
	assert.Equal(t, []string{"shared.txt"}, outcome.ConflictFiles)

	// The aborted merge leaves the integration worktree clean.
	_, changed, err := w.CommitAll(ctx, integration, "should be clean", testIdent)
	require.NoError(t, err)
	assert.False(t, changed)
}
