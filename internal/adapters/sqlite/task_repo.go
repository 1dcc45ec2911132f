package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/ocswarm/internal/models"
)

// TaskRepository implements secondary.TaskRepository with SQLite.
type TaskRepository struct {
	db *sql.DB
}

// NewTaskRepository creates a new SQLite task repository.
func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Upsert inserts or replaces the task snapshot keyed by task id.
func (r *TaskRepository) Upsert(ctx context.Context, task *models.AgentTask, status models.TaskStatus, retries int) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO tasks (id, run_id, iteration, status, retries, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			retries = excluded.retries,
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		task.ID, task.RunID, task.Iteration, string(status), retries, string(payload), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert task: %w", err)
	}
	return nil
}

// ListByRun returns all task snapshots for a run.
func (r *TaskRepository) ListByRun(ctx context.Context, runID string) ([]*models.TaskSnapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT status, retries, payload, created_at, updated_at FROM tasks WHERE run_id = ? ORDER BY created_at, id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var snapshots []*models.TaskSnapshot
	for rows.Next() {
		var (
			snap    models.TaskSnapshot
			status  string
			payload string
		)
		if err := rows.Scan(&status, &snap.Retries, &payload, &snap.CreatedAt, &snap.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		snap.Status = models.TaskStatus(status)
		if err := json.Unmarshal([]byte(payload), &snap.Task); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task payload: %w", err)
		}
		snapshots = append(snapshots, &snap)
	}
	return snapshots, rows.Err()
}
