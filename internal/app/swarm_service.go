package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/example/ocswarm/internal/models"
	"github.com/example/ocswarm/internal/ports/secondary"
)

// Lane is one agent's isolated working copy: a dedicated branch checked
// out in its own worktree.
type Lane struct {
	AgentID string
	Branch  string
	Path    string
	Files   []string

	create    sync.Once
	createErr error
}

type mergeItem struct {
	FromBranch string
	IntoBranch string
	AgentID    string
}

// SwarmManager coordinates per-agent git lanes and the run's FIFO merge
// queue. Lane creation and commits for different agents may run
// concurrently (each agent owns a disjoint worktree); merges are
// serialized because they all target the one integration branch.
type SwarmManager struct {
	runID   string
	cfg     models.GitConfig
	git     secondary.GitWorkspace
	emitter *Emitter

	worktreeRoot    string
	integrationPath string

	laneMu sync.Mutex
	lanes  map[string]*Lane

	queueMu sync.Mutex
	queue   []mergeItem

	// mergeMu guards the integration branch: merges never run
	// concurrently with each other.
	mergeMu sync.Mutex
}

// NewSwarmManager builds a manager for one run. Call Init before use.
func NewSwarmManager(runID string, cfg models.GitConfig, git secondary.GitWorkspace, emitter *Emitter) *SwarmManager {
	return &SwarmManager{
		runID:   runID,
		cfg:     cfg,
		git:     git,
		emitter: emitter,
		lanes:   make(map[string]*Lane),
	}
}

// BaseBranch is the resolved branch lanes are cut from.
func (m *SwarmManager) BaseBranch() string {
	if m.cfg.BaseBranch != "" {
		return m.cfg.BaseBranch
	}
	return "main"
}

// IntegrationBranch is the resolved branch lanes merge into.
func (m *SwarmManager) IntegrationBranch() string {
	if m.cfg.IntegrationBranch != "" {
		return m.cfg.IntegrationBranch
	}
	return "oc/integration/" + m.runID
}

// Init resolves defaults and creates the integration worktree.
func (m *SwarmManager) Init(ctx context.Context) error {
	if m.cfg.RepoPath == "" {
		return fmt.Errorf("git swarm requires a repo path")
	}

	m.worktreeRoot = m.cfg.WorktreeRoot
	if m.worktreeRoot == "" {
		m.worktreeRoot = filepath.Join(os.TempDir(), "ocswarm-"+m.runID)
	}
	if err := os.MkdirAll(m.worktreeRoot, 0755); err != nil {
		return fmt.Errorf("failed to create worktree root: %w", err)
	}

	m.integrationPath = filepath.Join(m.worktreeRoot, "integration")
	if err := m.git.AddWorktree(ctx, m.cfg.RepoPath, m.IntegrationBranch(), m.BaseBranch(), m.integrationPath); err != nil {
		return fmt.Errorf("failed to create integration worktree: %w", err)
	}
	m.emitter.Emit(ctx, m.runID, models.EventGitWorktreeCreated, map[string]any{
		"branch": m.IntegrationBranch(),
		"path":   m.integrationPath,
		"role":   "integration",
	})
	return nil
}

// laneBranch names an agent's lane branch.
func (m *SwarmManager) laneBranch(agentID string) string {
	return fmt.Sprintf("oc/lane/%s/%s", m.runID, agentID)
}

// EnsureLane returns the agent's lane, creating worktree and branch on
// first use. Idempotent per agent id; lanes for different agents are
// created concurrently, the map lock covers only the lookup.
func (m *SwarmManager) EnsureLane(ctx context.Context, agentID string) (*Lane, error) {
	m.laneMu.Lock()
	lane, ok := m.lanes[agentID]
	if !ok {
		lane = &Lane{
			AgentID: agentID,
			Branch:  m.laneBranch(agentID),
			Path:    filepath.Join(m.worktreeRoot, agentID),
		}
		m.lanes[agentID] = lane
	}
	m.laneMu.Unlock()

	lane.create.Do(func() {
		if err := m.git.AddWorktree(ctx, m.cfg.RepoPath, lane.Branch, m.BaseBranch(), lane.Path); err != nil {
			lane.createErr = fmt.Errorf("failed to create lane for %s: %w", agentID, err)
			m.emitter.Emit(ctx, m.runID, models.EventGitError, map[string]any{
				"agent_id": agentID,
				"op":       "worktree_add",
				"error":    err.Error(),
			})
			return
		}
		m.emitter.Emit(ctx, m.runID, models.EventGitWorktreeCreated, map[string]any{
			"agent_id": agentID,
			"branch":   lane.Branch,
			"path":     lane.Path,
		})
	})
	if lane.createErr != nil {
		return nil, lane.createErr
	}
	return lane, nil
}

// CommitAll stages and commits everything in the agent's lane. Returns
// the commit id, or "" with a skip event when the lane is clean.
func (m *SwarmManager) CommitAll(ctx context.Context, agentID, message string) (string, error) {
	m.laneMu.Lock()
	lane, ok := m.lanes[agentID]
	m.laneMu.Unlock()
	if !ok {
		return "", fmt.Errorf("no lane for agent %s", agentID)
	}

	commit, changed, err := m.git.CommitAll(ctx, lane.Path, message, m.cfg.Identity)
	if err != nil {
		m.emitter.Emit(ctx, m.runID, models.EventGitError, map[string]any{
			"agent_id": agentID,
			"op":       "commit",
			"error":    err.Error(),
		})
		return "", err
	}
	if !changed {
		m.emitter.Emit(ctx, m.runID, models.EventGitCommitSkipped, map[string]any{
			"agent_id": agentID,
			"branch":   lane.Branch,
		})
		return "", nil
	}

	if files, err := m.git.ChangedFiles(ctx, lane.Path, m.BaseBranch()); err == nil {
		lane.Files = files
	}
	m.emitter.Emit(ctx, m.runID, models.EventGitCommit, map[string]any{
		"agent_id": agentID,
		"branch":   lane.Branch,
		"commit":   commit,
	})
	return commit, nil
}

// EnqueueMerge appends a lane-to-integration merge to the run's FIFO queue.
func (m *SwarmManager) EnqueueMerge(ctx context.Context, fromBranch, intoBranch, agentID string) {
	m.queueMu.Lock()
	m.queue = append(m.queue, mergeItem{FromBranch: fromBranch, IntoBranch: intoBranch, AgentID: agentID})
	m.queueMu.Unlock()

	m.emitter.Emit(ctx, m.runID, models.EventGitMergeQueued, map[string]any{
		"agent_id": agentID,
		"from":     fromBranch,
		"into":     intoBranch,
	})
}

// ProcessMergeQueue drains the queue strictly in FIFO order. A conflict
// is recorded and surfaced but does not by itself abort the run; whether
// unmerged work fails the run is the orchestrator's check/report call.
func (m *SwarmManager) ProcessMergeQueue(ctx context.Context) error {
	m.mergeMu.Lock()
	defer m.mergeMu.Unlock()

	for {
		m.queueMu.Lock()
		if len(m.queue) == 0 {
			m.queueMu.Unlock()
			return nil
		}
		item := m.queue[0]
		m.queue = m.queue[1:]
		m.queueMu.Unlock()

		m.emitter.Emit(ctx, m.runID, models.EventGitMergeAttempt, map[string]any{
			"agent_id": item.AgentID,
			"from":     item.FromBranch,
			"into":     item.IntoBranch,
		})

		outcome, err := m.git.Merge(ctx, m.integrationPath, item.FromBranch, m.cfg.Identity)
		if err != nil {
			m.emitter.Emit(ctx, m.runID, models.EventGitError, map[string]any{
				"agent_id": item.AgentID,
				"op":       "merge",
				"error":    err.Error(),
			})
			return fmt.Errorf("merge of %s failed: %w", item.FromBranch, err)
		}

		status := "success"
		if outcome.Conflict {
			status = "conflict"
		}
		m.emitter.Emit(ctx, m.runID, models.EventGitMergeResult, map[string]any{
			"agent_id":       item.AgentID,
			"from":           item.FromBranch,
			"into":           item.IntoBranch,
			"status":         status,
			"commit":         outcome.Commit,
			"conflict_files": outcome.ConflictFiles,
		})
	}
}

// Cleanup removes all lanes, the integration worktree, and their
// branches. Best-effort: failures are swallowed.
func (m *SwarmManager) Cleanup(ctx context.Context) {
	m.laneMu.Lock()
	lanes := make([]*Lane, 0, len(m.lanes))
	for _, lane := range m.lanes {
		lanes = append(lanes, lane)
	}
	m.lanes = make(map[string]*Lane)
	m.laneMu.Unlock()

	for _, lane := range lanes {
		_ = m.git.RemoveWorktree(ctx, m.cfg.RepoPath, lane.Path)
		_ = m.git.DeleteBranch(ctx, m.cfg.RepoPath, lane.Branch)
	}
	if m.integrationPath != "" {
		_ = m.git.RemoveWorktree(ctx, m.cfg.RepoPath, m.integrationPath)
	}
	_ = os.RemoveAll(m.worktreeRoot)
}
