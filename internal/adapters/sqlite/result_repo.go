package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/ocswarm/internal/models"
)

// ResultRepository implements secondary.ResultRepository with SQLite.
type ResultRepository struct {
	db *sql.DB
}

// NewResultRepository creates a new SQLite result repository.
func NewResultRepository(db *sql.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// Save inserts or replaces a result keyed by result id. Evidence and
// artifacts are fanned out into their own tables inside the same
// transaction, replacing any rows from a prior save of the same result.
func (r *ResultRepository) Save(ctx context.Context, res *models.AgentResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin result transaction: %w", err)
	}
	defer tx.Rollback()

	var taskID sql.NullString
	if res.TaskID != "" {
		taskID = sql.NullString{String: res.TaskID, Valid: true}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO results (id, task_id, run_id, role, iteration, attempt, stage, status, summary, payload, duration_ms, tokens, cost, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			summary = excluded.summary,
			payload = excluded.payload,
			duration_ms = excluded.duration_ms,
			tokens = excluded.tokens,
			cost = excluded.cost`,
		res.ID, taskID, res.RunID, res.Role, res.Iteration, res.Attempt,
		string(res.Stage), string(res.Status), res.Summary, string(payload),
		res.Metrics.DurationMS, res.Metrics.Tokens, res.Metrics.Cost, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM evidence WHERE result_id = ?", res.ID); err != nil {
		return fmt.Errorf("failed to clear evidence: %w", err)
	}
	for _, item := range res.Evidence {
		meta := ""
		if len(item.Metadata) > 0 {
			b, err := json.Marshal(item.Metadata)
			if err != nil {
				return fmt.Errorf("failed to marshal evidence metadata: %w", err)
			}
			meta = string(b)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO evidence (id, result_id, run_id, type, uri, description, hash, metadata) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			item.ID, res.ID, res.RunID, item.Type, item.URI, item.Description, item.Hash, meta,
		); err != nil {
			return fmt.Errorf("failed to insert evidence: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM artifacts WHERE result_id = ?", res.ID); err != nil {
		return fmt.Errorf("failed to clear artifacts: %w", err)
	}
	for _, art := range res.Artifacts {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO artifacts (id, result_id, run_id, type, path, description) VALUES (?, ?, ?, ?, ?, ?)",
			art.ID, res.ID, res.RunID, art.Type, art.Path, art.Description,
		); err != nil {
			return fmt.Errorf("failed to insert artifact: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit result: %w", err)
	}
	return nil
}

// ListByRun returns all results for a run in insertion order.
func (r *ResultRepository) ListByRun(ctx context.Context, runID string) ([]*models.AgentResult, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT payload FROM results WHERE run_id = ? ORDER BY created_at, id", runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var results []*models.AgentResult
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		var res models.AgentResult
		if err := json.Unmarshal([]byte(payload), &res); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result payload: %w", err)
		}
		results = append(results, &res)
	}
	return results, rows.Err()
}

// ListEvidence returns all evidence items recorded for a run.
func (r *ResultRepository) ListEvidence(ctx context.Context, runID string) ([]models.EvidenceItem, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, type, uri, description, hash, metadata FROM evidence WHERE run_id = ?", runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list evidence: %w", err)
	}
	defer rows.Close()

	var items []models.EvidenceItem
	for rows.Next() {
		var (
			item models.EvidenceItem
			uri  sql.NullString
			desc sql.NullString
			hash sql.NullString
			meta sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.Type, &uri, &desc, &hash, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan evidence: %w", err)
		}
		item.URI = uri.String
		item.Description = desc.String
		item.Hash = hash.String
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &item.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal evidence metadata: %w", err)
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListArtifacts returns all artifacts recorded for a run.
func (r *ResultRepository) ListArtifacts(ctx context.Context, runID string) ([]models.Artifact, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, type, path, description FROM artifacts WHERE run_id = ?", runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var arts []models.Artifact
	for rows.Next() {
		var (
			art  models.Artifact
			typ  sql.NullString
			desc sql.NullString
		)
		if err := rows.Scan(&art.ID, &typ, &art.Path, &desc); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		art.Type = typ.String
		art.Description = desc.String
		arts = append(arts, art)
	}
	return arts, rows.Err()
}
