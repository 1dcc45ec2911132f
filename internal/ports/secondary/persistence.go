// Package secondary defines the secondary ports (driven adapters) for the
// engine. These are the interfaces through which the engine drives the
// ledger, the agent backend, git, and the preview host.
package secondary

import (
	"context"
	"time"

	"github.com/example/ocswarm/internal/models"
)

// RunRepository persists run records and their budget counters.
type RunRepository interface {
	// Create persists a new queued run with its package snapshot.
	Create(ctx context.Context, run *models.RunRecord) error

	// GetByID retrieves a run by its ID.
	GetByID(ctx context.Context, id string) (*models.RunRecord, error)

	// MarkStarted transitions a queued run to running and records the
	// start time. Fails if the run is not queued.
	MarkStarted(ctx context.Context, id string, at time.Time) error

	// SetSession stores the external session handle on the run.
	SetSession(ctx context.Context, id, sessionID string) error

	// RequestCancel flips the cancel_requested flag. The engine notices
	// at its next policy check.
	RequestCancel(ctx context.Context, id string) error

	// Finish transitions a run to a terminal status with a reason code.
	// finished_at is set exactly once; a run that is already terminal is
	// left untouched.
	Finish(ctx context.Context, id string, status models.RunStatus, reason string, at time.Time) error

	// AddBudget atomically increments the run's budget counters. Safe for
	// arbitrary concurrent callers.
	AddBudget(ctx context.Context, id string, tokens int64, cost float64) error
}

// EventRepository is the append-only per-run event log.
type EventRepository interface {
	// Append assigns the next per-run event id transactionally and
	// inserts the event. Event ids are strictly increasing and gap-free
	// even under concurrent appends.
	Append(ctx context.Context, runID, eventType string, data []byte) (*models.RunEvent, error)

	// ListAfter returns up to limit events with event_id greater than
	// afterEventID, in id order. limit <= 0 means no limit.
	ListAfter(ctx context.Context, runID string, afterEventID int64, limit int) ([]*models.RunEvent, error)
}

// TaskRepository persists dispatched task snapshots.
type TaskRepository interface {
	// Upsert inserts or replaces the snapshot keyed by task id.
	Upsert(ctx context.Context, task *models.AgentTask, status models.TaskStatus, retries int) error

	// ListByRun returns all task snapshots for a run.
	ListByRun(ctx context.Context, runID string) ([]*models.TaskSnapshot, error)
}

// ResultRepository persists stage results with evidence/artifact fan-out.
type ResultRepository interface {
	// Save inserts or replaces a result keyed by result id, fanning its
	// evidence and artifacts out into their own collections.
	Save(ctx context.Context, res *models.AgentResult) error

	// ListByRun returns all results for a run in insertion order.
	ListByRun(ctx context.Context, runID string) ([]*models.AgentResult, error)

	// ListEvidence returns all evidence items recorded for a run.
	ListEvidence(ctx context.Context, runID string) ([]models.EvidenceItem, error)

	// ListArtifacts returns all artifacts recorded for a run.
	ListArtifacts(ctx context.Context, runID string) ([]models.Artifact, error)
}

// RunCounters are the ledger's aggregate read-side counters for one run.
type RunCounters struct {
	Events        int            `json:"events"`
	Results       int            `json:"results"`
	Evidence      int            `json:"evidence"`
	Artifacts     int            `json:"artifacts"`
	TasksByStatus map[string]int `json:"tasks_by_status"`
}

// CounterReader exposes the aggregate counters.
type CounterReader interface {
	Counters(ctx context.Context, runID string) (*RunCounters, error)
}
