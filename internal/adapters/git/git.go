// Package git contains the exec-based git adapter behind the
// secondary.GitWorkspace port.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/example/ocswarm/internal/models"
	"github.com/example/ocswarm/internal/ports/secondary"
)

// Workspace implements secondary.GitWorkspace by shelling out to git.
type Workspace struct{}

// NewWorkspace creates a new git workspace adapter.
func NewWorkspace() *Workspace {
	return &Workspace{}
}

// AddWorktree creates a worktree at targetPath on a new branch cut from
// baseBranch.
func (w *Workspace) AddWorktree(ctx context.Context, repoPath, branch, baseBranch, targetPath string) error {
	if _, err := os.Stat(repoPath); os.IsNotExist(err) {
		return fmt.Errorf("repo not found at %s", repoPath)
	}
	if _, err := w.run(ctx, repoPath, "worktree", "add", targetPath, "-b", branch, baseBranch); err != nil {
		return fmt.Errorf("git worktree add failed: %w", err)
	}
	return nil
}

// RemoveWorktree removes a worktree, falling back to direct directory
// removal, then prunes stale registrations.
func (w *Workspace) RemoveWorktree(ctx context.Context, repoPath, targetPath string) error {
	if _, err := w.run(ctx, repoPath, "worktree", "remove", targetPath, "--force"); err != nil {
		if rmErr := os.RemoveAll(targetPath); rmErr != nil {
			return fmt.Errorf("failed to remove worktree directory: %w", rmErr)
		}
		_, _ = w.run(ctx, repoPath, "worktree", "prune")
	}
	return nil
}

// DeleteBranch deletes a local branch.
func (w *Workspace) DeleteBranch(ctx context.Context, repoPath, branch string) error {
	if _, err := w.run(ctx, repoPath, "branch", "-D", branch); err != nil {
		return fmt.Errorf("failed to delete branch %s: %w", branch, err)
	}
	return nil
}

// CommitAll stages and commits everything in the worktree. Returns
// changed=false when there is nothing to commit.
func (w *Workspace) CommitAll(ctx context.Context, worktreePath, message string, ident models.GitIdentity) (string, bool, error) {
	if _, err := w.run(ctx, worktreePath, "add", "-A"); err != nil {
		return "", false, fmt.Errorf("git add failed: %w", err)
	}

	status, err := w.run(ctx, worktreePath, "status", "--porcelain")
	if err != nil {
		return "", false, fmt.Errorf("git status failed: %w", err)
	}
	if strings.TrimSpace(status) == "" {
		return "", false, nil
	}

	args := identityArgs(ident)
	args = append(args, "commit", "-m", message)
	if _, err := w.run(ctx, worktreePath, args...); err != nil {
		return "", false, fmt.Errorf("git commit failed: %w", err)
	}

	commit, err := w.run(ctx, worktreePath, "rev-parse", "HEAD")
	if err != nil {
		return "", false, fmt.Errorf("git rev-parse failed: %w", err)
	}
	return strings.TrimSpace(commit), true, nil
}

// ChangedFiles lists paths differing from baseBranch plus uncommitted
// paths. Informational only.
func (w *Workspace) ChangedFiles(ctx context.Context, worktreePath, baseBranch string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	committed, err := w.run(ctx, worktreePath, "diff", "--name-only", baseBranch)
	if err == nil {
		for _, line := range strings.Split(strings.TrimSpace(committed), "\n") {
			if line != "" && !seen[line] {
				seen[line] = true
				files = append(files, line)
			}
		}
	}

	status, err := w.run(ctx, worktreePath, "status", "--porcelain")
	if err != nil {
		return files, fmt.Errorf("git status failed: %w", err)
	}
	for _, line := range strings.Split(strings.TrimSpace(status), "\n") {
		if len(line) > 3 {
			path := strings.TrimSpace(line[3:])
			if path != "" && !seen[path] {
				seen[path] = true
				files = append(files, path)
			}
		}
	}
	return files, nil
}

// Merge merges fromBranch into the branch checked out at worktreePath.
// A merge the tool reports as non-clean is aborted and returned as a
// conflict outcome; any other failure is an error.
func (w *Workspace) Merge(ctx context.Context, worktreePath, fromBranch string, ident models.GitIdentity) (secondary.MergeOutcome, error) {
	args := identityArgs(ident)
	args = append(args, "merge", "--no-ff", "--no-edit", fromBranch)

	if _, err := w.run(ctx, worktreePath, args...); err != nil {
		unmerged, listErr := w.run(ctx, worktreePath, "diff", "--name-only", "--diff-filter=U")
		if listErr == nil && strings.TrimSpace(unmerged) != "" {
			_, _ = w.run(ctx, worktreePath, "merge", "--abort")
			return secondary.MergeOutcome{
				Conflict:      true,
				ConflictFiles: strings.Split(strings.TrimSpace(unmerged), "\n"),
			}, nil
		}
		// Not a content conflict; leave no half-done merge behind.
		_, _ = w.run(ctx, worktreePath, "merge", "--abort")
		return secondary.MergeOutcome{}, fmt.Errorf("git merge failed: %w", err)
	}

	commit, err := w.run(ctx, worktreePath, "rev-parse", "HEAD")
	if err != nil {
		return secondary.MergeOutcome{}, fmt.Errorf("git rev-parse failed: %w", err)
	}
	return secondary.MergeOutcome{Commit: strings.TrimSpace(commit)}, nil
}

func identityArgs(ident models.GitIdentity) []string {
	name := ident.Name
	if name == "" {
		name = "ocswarm"
	}
	email := ident.Email
	if email == "" {
		email = "ocswarm@localhost"
	}
	return []string{"-c", "user.name=" + name, "-c", "user.email=" + email}
}

// run executes a git command in dir and returns stdout.
func (w *Workspace) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %s", err, stderr.String())
	}
	return stdout.String(), nil
}
