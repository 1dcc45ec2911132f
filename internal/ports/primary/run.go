// Package primary defines the primary ports (driving interfaces) exposed
// to the CLI and HTTP adapters.
package primary

import (
	"context"

	"github.com/example/ocswarm/internal/models"
	"github.com/example/ocswarm/internal/ports/secondary"
)

// RunView is a run record plus the ledger's aggregate counters.
type RunView struct {
	Run      *models.RunRecord      `json:"run"`
	Counters *secondary.RunCounters `json:"counters"`
}

// RunService drives runs end to end.
type RunService interface {
	// CreateRun validates the package and persists a queued run.
	CreateRun(ctx context.Context, pack *models.OrchestrationPackage) (*models.RunRecord, error)

	// ExecuteRun drives a queued run through the stage state machine
	// until it reaches a terminal state. Blocks for the run's duration.
	ExecuteRun(ctx context.Context, runID string) error

	// CancelRun requests cooperative cancellation. The engine honors it
	// at the next policy boundary.
	CancelRun(ctx context.Context, runID string) error

	// GetRun returns the run with its counters.
	GetRun(ctx context.Context, runID string) (*RunView, error)

	// ListEvents replays the run's event log from a cursor.
	ListEvents(ctx context.Context, runID string, afterEventID int64, limit int) ([]*models.RunEvent, error)

	// ListTasks returns the run's task snapshots.
	ListTasks(ctx context.Context, runID string) ([]*models.TaskSnapshot, error)

	// ListResults returns the run's stage results.
	ListResults(ctx context.Context, runID string) ([]*models.AgentResult, error)
}
