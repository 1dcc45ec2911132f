// Package tmux hosts the preview-server process inside a tmux session so
// it outlives individual engine goroutines and can be inspected by hand.
package tmux

import (
	"context"
	"fmt"
	"strings"

	"github.com/GianlucaP106/gotmux/gotmux"

	"github.com/example/ocswarm/internal/models"
)

// GotmuxAdapter implements secondary.PreviewHost on top of gotmux.
type GotmuxAdapter struct {
	tmux *gotmux.Tmux
}

// NewGotmuxAdapter creates a new gotmux adapter.
func NewGotmuxAdapter() (*GotmuxAdapter, error) {
	tmux, err := gotmux.DefaultTmux()
	if err != nil {
		return nil, fmt.Errorf("failed to create tmux client: %w", err)
	}
	return &GotmuxAdapter{tmux: tmux}, nil
}

// sessionName returns the preview session name for a run.
func sessionName(runID string) string {
	return "ocswarm-preview-" + runID
}

// escapeShellCommand works around a gotmux quoting bug where ShellCommand
// is wrapped in single quotes (e.g. 'npm run dev'). The shell interprets
// that as a single token, so multi-word commands fail with status 127.
// Replacing spaces with ' ' (close-quote, space, open-quote) makes the
// wrapping produce separately quoted words.
func escapeShellCommand(cmd string) string {
	return strings.ReplaceAll(cmd, " ", "' '")
}

// Start launches the preview command in a dedicated detached session.
func (g *GotmuxAdapter) Start(ctx context.Context, runID string, cfg models.PreviewConfig) error {
	_, err := g.tmux.NewSession(&gotmux.SessionOptions{
		Name:           sessionName(runID),
		StartDirectory: cfg.Dir,
		ShellCommand:   escapeShellCommand(cfg.Command),
	})
	if err != nil {
		return fmt.Errorf("failed to create preview session: %w", err)
	}
	return nil
}

// Stop kills the run's preview session if it exists.
func (g *GotmuxAdapter) Stop(ctx context.Context, runID string) error {
	sessions, err := g.tmux.ListSessions()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	name := sessionName(runID)
	for _, s := range sessions {
		if s.Name == name {
			return s.Kill()
		}
	}
	return nil
}
