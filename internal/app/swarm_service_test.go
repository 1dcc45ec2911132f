package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ocswarm/internal/adapters/sqlite"
	"github.com/example/ocswarm/internal/db"
	"github.com/example/ocswarm/internal/models"
	"github.com/example/ocswarm/internal/ports/secondary"
)

// fakeGit records git operations instead of shelling out.
type fakeGit struct {
	mu        sync.Mutex
	worktrees []string
	commits   []string
	merges    []string
	clean     bool
	conflicts map[string]bool
}

func (g *fakeGit) AddWorktree(ctx context.Context, repoPath, branch, baseBranch, targetPath string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.worktrees = append(g.worktrees, branch)
	return nil
}

func (g *fakeGit) RemoveWorktree(ctx context.Context, repoPath, targetPath string) error {
	return nil
}

func (g *fakeGit) DeleteBranch(ctx context.Context, repoPath, branch string) error {
	return nil
}

func (g *fakeGit) CommitAll(ctx context.Context, worktreePath, message string, ident models.GitIdentity) (string, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.clean {
		return "", false, nil
	}
	g.commits = append(g.commits, worktreePath)
	return fmt.Sprintf("commit%d", len(g.commits)), true, nil
}

func (g *fakeGit) ChangedFiles(ctx context.Context, worktreePath, baseBranch string) ([]string, error) {
	return []string{"main.go"}, nil
}

func (g *fakeGit) Merge(ctx context.Context, worktreePath, fromBranch string, ident models.GitIdentity) (secondary.MergeOutcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.merges = append(g.merges, fromBranch)
	if g.conflicts[fromBranch] {
		return secondary.MergeOutcome{Conflict: true, ConflictFiles: []string{"main.go"}}, nil
	}
	return secondary.MergeOutcome{Commit: "merged_" + fromBranch}, nil
}

var _ secondary.GitWorkspace = (*fakeGit)(nil)

func newSwarm(t *testing.T, g *fakeGit) (*SwarmManager, *sqlite.EventRepository, string) {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	runs := sqlite.NewRunRepository(conn)
	run := &models.RunRecord{
		ID:     models.NewRunID(),
		Status: models.RunQueued,
		Pack:   &models.OrchestrationPackage{Objective: models.Objective{Title: "x"}},
	}
	require.NoError(t, runs.Create(context.Background(), run))

	events := sqlite.NewEventRepository(conn)
	cfg := models.GitConfig{
		Enabled:      true,
		RepoPath:     t.TempDir(),
		WorktreeRoot: t.TempDir(),
	}
	m := NewSwarmManager(run.ID, cfg, g, NewEmitter(events))
	require.NoError(t, m.Init(context.Background()))
	return m, events, run.ID
}

func TestEnsureLaneIsIdempotent(t *testing.T) {
	g := &fakeGit{}
	m, _, _ := newSwarm(t, g)
	ctx := context.Background()

	var wg sync.WaitGroup
	lanes := make([]*Lane, 8)
	for i := range lanes {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			lane, err := m.EnsureLane(ctx, "agent-a")
			assert.NoError(t, err)
			lanes[i] = lane
		}()
	}
	wg.Wait()

	for _, lane := range lanes[1:] {
		assert.Same(t, lanes[0], lane)
	}
	// One integration worktree plus exactly one lane worktree.
	assert.Len(t, g.worktrees, 2)
}

func TestCommitAllEmitsSkipWhenClean(t *testing.T) {
	g := &fakeGit{clean: true}
	m, events, runID := newSwarm(t, g)
	ctx := context.Background()

	_, err := m.EnsureLane(ctx, "agent-a")
	require.NoError(t, err)

	commit, err := m.CommitAll(ctx, "agent-a", "nothing to commit")
	require.NoError(t, err)
	assert.Empty(t, commit)

	all, err := events.ListAfter(ctx, runID, 0, 0)
	require.NoError(t, err)
	var types []string
	for _, ev := range all {
		types = append(types, ev.Type)
	}
	assert.Contains(t, types, models.EventGitCommitSkipped)
	assert.NotContains(t, types, models.EventGitCommit)
}

func TestMergeQueueIsFIFOAndConflictIsNotFatal(t *testing.T) {
	g := &fakeGit{conflicts: map[string]bool{"lane-b": true}}
	m, events, runID := newSwarm(t, g)
	ctx := context.Background()

	m.EnqueueMerge(ctx, "lane-a", m.IntegrationBranch(), "agent-a")
	m.EnqueueMerge(ctx, "lane-b", m.IntegrationBranch(), "agent-b")
	m.EnqueueMerge(ctx, "lane-c", m.IntegrationBranch(), "agent-c")

	require.NoError(t, m.ProcessMergeQueue(ctx))
	assert.Equal(t, []string{"lane-a", "lane-b", "lane-c"}, g.merges)

	all, err := events.ListAfter(ctx, runID, 0, 0)
	require.NoError(t, err)
	var statuses []string
	for _, ev := range all {
		if ev.Type == models.EventGitMergeResult {
			statuses = append(statuses, string(ev.Data))
		}
	}
	require.Len(t, statuses, 3)
	assert.Contains(t, statuses[0], `"status":"success"`)
	assert.Contains(t, statuses[1], `"status":"conflict"`)
	assert.Contains(t, statuses[2], `"status":"success"`)
}
