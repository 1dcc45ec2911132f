package secondary

import (
	"context"

	"github.com/example/ocswarm/internal/models"
)

// MergeOutcome is the result of one merge attempt.
type MergeOutcome struct {
	Commit        string
	Conflict      bool
	ConflictFiles []string
}

// GitWorkspace abstracts the git primitives the swarm manager needs.
// Worktrees for different branches are disjoint working copies, so calls
// against different worktrees may run concurrently; merges into one
// integration branch must be serialized by the caller.
type GitWorkspace interface {
	// AddWorktree creates a worktree at targetPath on a new branch cut
	// from baseBranch.
	AddWorktree(ctx context.Context, repoPath, branch, baseBranch, targetPath string) error

	// RemoveWorktree removes a worktree and prunes its registration.
	RemoveWorktree(ctx context.Context, repoPath, targetPath string) error

	// DeleteBranch deletes a local branch. Best-effort.
	DeleteBranch(ctx context.Context, repoPath, branch string) error

	// CommitAll stages and commits everything in the worktree. Returns
	// changed=false with an empty commit when the tree is clean.
	CommitAll(ctx context.Context, worktreePath, message string, ident models.GitIdentity) (commit string, changed bool, err error)

	// ChangedFiles lists paths with uncommitted or committed-but-unmerged
	// differences against baseBranch. Informational.
	ChangedFiles(ctx context.Context, worktreePath, baseBranch string) ([]string, error)

	// Merge merges fromBranch into the branch checked out at
	// worktreePath. A non-clean merge is aborted and reported as a
	// conflict outcome, not an error.
	Merge(ctx context.Context, worktreePath, fromBranch string, ident models.GitIdentity) (MergeOutcome, error)
}
