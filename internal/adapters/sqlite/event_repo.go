package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/ocswarm/internal/models"
)

// EventRepository implements secondary.EventRepository with SQLite.
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new SQLite event repository.
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Append assigns the next per-run event id and inserts the event. The
// max-then-insert happens inside a single INSERT..SELECT statement, so it
// runs entirely under SQLite's write lock: concurrent emitters serialize
// and always get strictly increasing, gap-free ids.
func (r *EventRepository) Append(ctx context.Context, runID, eventType string, data []byte) (*models.RunEvent, error) {
	var payload sql.NullString
	if len(data) > 0 {
		payload = sql.NullString{String: string(data), Valid: true}
	}
	createdAt := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin event transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO run_events (run_id, event_id, type, data, created_at)
		SELECT ?, COALESCE(MAX(event_id), 0) + 1, ?, ?, ?
		FROM run_events WHERE run_id = ?`,
		runID, eventType, payload, createdAt, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}

	rowID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read event rowid: %w", err)
	}

	var eventID int64
	if err := tx.QueryRowContext(ctx,
		"SELECT event_id FROM run_events WHERE rowid = ?", rowID,
	).Scan(&eventID); err != nil {
		return nil, fmt.Errorf("failed to read event id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit event: %w", err)
	}

	return &models.RunEvent{
		RunID:     runID,
		EventID:   eventID,
		Type:      eventType,
		Data:      json.RawMessage(data),
		CreatedAt: createdAt,
	}, nil
}

// ListAfter returns up to limit events after the cursor, in id order.
func (r *EventRepository) ListAfter(ctx context.Context, runID string, afterEventID int64, limit int) ([]*models.RunEvent, error) {
	query := "SELECT run_id, event_id, type, data, created_at FROM run_events WHERE run_id = ? AND event_id > ? ORDER BY event_id"
	args := []any{runID, afterEventID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*models.RunEvent
	for rows.Next() {
		var (
			event models.RunEvent
			data  sql.NullString
		)
		if err := rows.Scan(&event.RunID, &event.EventID, &event.Type, &data, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if data.Valid {
			event.Data = json.RawMessage(data.String)
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}
