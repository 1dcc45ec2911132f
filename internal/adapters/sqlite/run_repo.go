// Package sqlite contains SQLite implementations of the ledger ports.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/ocswarm/internal/models"
	"github.com/example/ocswarm/internal/ports/secondary"
)

// RunRepository implements secondary.RunRepository with SQLite.
type RunRepository struct {
	db *sql.DB
}

var _ secondary.RunRepository = (*RunRepository)(nil)

// NewRunRepository creates a new SQLite run repository.
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create persists a new queued run with its package snapshot.
func (r *RunRepository) Create(ctx context.Context, run *models.RunRecord) error {
	pack, err := json.Marshal(run.Pack)
	if err != nil {
		return fmt.Errorf("failed to marshal package: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO runs (id, status, pack, created_at) VALUES (?, ?, ?, ?)",
		run.ID, string(models.RunQueued), string(pack), run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID.
func (r *RunRepository) GetByID(ctx context.Context, id string) (*models.RunRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, status, reason, cancel_requested, session_id, pack, tokens_used, cost_used, created_at, started_at, finished_at FROM runs WHERE id = ?",
		id,
	)

	var (
		run       models.RunRecord
		reason    sql.NullString
		sessionID sql.NullString
		pack      string
		started   sql.NullTime
		finished  sql.NullTime
	)
	err := row.Scan(&run.ID, &run.Status, &reason, &run.CancelRequested, &sessionID,
		&pack, &run.TokensUsed, &run.CostUsed, &run.CreatedAt, &started, &finished)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run.Reason = reason.String
	run.SessionID = sessionID.String
	if started.Valid {
		t := started.Time
		run.StartedAt = &t
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	if err := json.Unmarshal([]byte(pack), &run.Pack); err != nil {
		return nil, fmt.Errorf("failed to unmarshal package: %w", err)
	}

	return &run, nil
}

// MarkStarted transitions a queued run to running.
func (r *RunRepository) MarkStarted(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE runs SET status = ?, started_at = ? WHERE id = ? AND status = ?",
		string(models.RunRunning), at, id, string(models.RunQueued),
	)
	if err != nil {
		return fmt.Errorf("failed to mark run started: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark run started: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s is not queued", id)
	}
	return nil
}

// SetSession stores the external session handle.
func (r *RunRepository) SetSession(ctx context.Context, id, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE runs SET session_id = ? WHERE id = ?", sessionID, id); err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}
	return nil
}

// RequestCancel flips the cancel_requested flag.
func (r *RunRepository) RequestCancel(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE runs SET cancel_requested = 1 WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to request cancel: %w", err)
	}
	return nil
}

// Finish transitions a run to a terminal status. finished_at is written
// exactly once: a run that is already terminal is left untouched.
func (r *RunRepository) Finish(ctx context.Context, id string, status models.RunStatus, reason string, at time.Time) error {
	if !status.Terminal() {
		return fmt.Errorf("status %s is not terminal", status)
	}
	if _, err := r.db.ExecContext(ctx,
		"UPDATE runs SET status = ?, reason = ?, finished_at = ? WHERE id = ? AND finished_at IS NULL",
		string(status), reason, at, id,
	); err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// AddBudget atomically increments the run's budget counters. The
// increment is applied in-database so concurrent worker completions never
// lose an update.
func (r *RunRepository) AddBudget(ctx context.Context, id string, tokens int64, cost float64) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE runs SET tokens_used = tokens_used + ?, cost_used = cost_used + ? WHERE id = ?",
		tokens, cost, id,
	); err != nil {
		return fmt.Errorf("failed to add budget: %w", err)
	}
	return nil
}
