package app

import (
	"context"
	"fmt"
	"time"

	"github.com/example/ocswarm/internal/models"
	"github.com/example/ocswarm/internal/ports/primary"
	"github.com/example/ocswarm/internal/ports/secondary"
)

// RunService implements the primary run port over the ledger and the
// engine.
type RunService struct {
	runs     secondary.RunRepository
	tasks    secondary.TaskRepository
	results  secondary.ResultRepository
	events   secondary.EventRepository
	counters secondary.CounterReader
	engine   *Engine
}

var _ primary.RunService = (*RunService)(nil)

// NewRunService wires a run service.
func NewRunService(
	runs secondary.RunRepository,
	tasks secondary.TaskRepository,
	results secondary.ResultRepository,
	events secondary.EventRepository,
	counters secondary.CounterReader,
	engine *Engine,
) *RunService {
	return &RunService{
		runs:     runs,
		tasks:    tasks,
		results:  results,
		events:   events,
		counters: counters,
		engine:   engine,
	}
}

// CreateRun validates the package and persists a queued run snapshot.
func (s *RunService) CreateRun(ctx context.Context, pack *models.OrchestrationPackage) (*models.RunRecord, error) {
	if err := validatePack(pack); err != nil {
		return nil, err
	}

	run := &models.RunRecord{
		ID:        models.NewRunID(),
		Status:    models.RunQueued,
		Pack:      pack,
		CreatedAt: time.Now(),
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// ExecuteRun drives a queued run to a terminal state. Blocks.
func (s *RunService) ExecuteRun(ctx context.Context, runID string) error {
	return s.engine.Execute(ctx, runID)
}

// CancelRun flips the cancel flag; the engine honors it at its next
// policy boundary.
func (s *RunService) CancelRun(ctx context.Context, runID string) error {
	run, err := s.runs.GetByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	if run.Status.Terminal() {
		return fmt.Errorf("run %s is already %s", runID, run.Status)
	}
	return s.runs.RequestCancel(ctx, runID)
}

// GetRun returns the run with its ledger counters.
func (s *RunService) GetRun(ctx context.Context, runID string) (*primary.RunView, error) {
	run, err := s.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	counters, err := s.counters.Counters(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load counters for %s: %w", runID, err)
	}
	return &primary.RunView{Run: run, Counters: counters}, nil
}

// ListEvents replays the event log from a cursor.
func (s *RunService) ListEvents(ctx context.Context, runID string, afterEventID int64, limit int) ([]*models.RunEvent, error) {
	return s.events.ListAfter(ctx, runID, afterEventID, limit)
}

// ListTasks returns the run's task snapshots.
func (s *RunService) ListTasks(ctx context.Context, runID string) ([]*models.TaskSnapshot, error) {
	return s.tasks.ListByRun(ctx, runID)
}

// ListResults returns the run's stage results.
func (s *RunService) ListResults(ctx context.Context, runID string) ([]*models.AgentResult, error) {
	return s.results.ListByRun(ctx, runID)
}

// validatePack rejects packages that cannot possibly execute.
func validatePack(pack *models.OrchestrationPackage) error {
	if pack == nil {
		return fmt.Errorf("package is required")
	}
	if pack.Objective.Title == "" {
		return fmt.Errorf("objective title is required")
	}
	if pack.Agents.Orchestrator.Name == "" {
		return fmt.Errorf("orchestrator agent profile is required")
	}
	if pack.Agents.Worker.Name == "" {
		return fmt.Errorf("worker agent profile is required")
	}

	pol := pack.Policy
	if pol.MaxOrchestratorIterations < 0 ||
		pol.MaxWorkerTaskRetries < 0 ||
		pol.MaxMalformedOutputRetries < 0 ||
		pol.MaxWorkers < 0 {
		return fmt.Errorf("policy limits must not be negative")
	}
	if pol.StageTimeoutSeconds < 0 || pol.WallClockSeconds < 0 {
		return fmt.Errorf("policy timeouts must not be negative")
	}
	for stage, t := range pol.StageTimeouts {
		if !models.ValidStage(stage) {
			return fmt.Errorf("unknown stage %q in stage timeouts", stage)
		}
		if t < 0 {
			return fmt.Errorf("stage timeout for %s must not be negative", stage)
		}
	}
	if pol.BudgetTokens < 0 || pol.BudgetCost < 0 {
		return fmt.Errorf("budgets must not be negative")
	}

	if pack.Git != nil && pack.Git.Enabled && pack.Git.RepoPath == "" {
		return fmt.Errorf("git.repo_path is required when git is enabled")
	}
	if pack.Preview != nil {
		if pack.Preview.Command == "" {
			return fmt.Errorf("preview.command is required")
		}
		if pack.Preview.URL == "" {
			return fmt.Errorf("preview.url is required")
		}
	}
	return nil
}
