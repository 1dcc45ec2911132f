package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/ocswarm/internal/ports/secondary"
)

// CounterReader implements secondary.CounterReader with SQLite.
type CounterReader struct {
	db *sql.DB
}

// NewCounterReader creates a new SQLite counter reader.
func NewCounterReader(db *sql.DB) *CounterReader {
	return &CounterReader{db: db}
}

// Counters returns the run's aggregate counters.
func (r *CounterReader) Counters(ctx context.Context, runID string) (*secondary.RunCounters, error) {
	counters := &secondary.RunCounters{TasksByStatus: make(map[string]int)}

	scalars := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM run_events WHERE run_id = ?", &counters.Events},
		{"SELECT COUNT(*) FROM results WHERE run_id = ?", &counters.Results},
		{"SELECT COUNT(*) FROM evidence WHERE run_id = ?", &counters.Evidence},
		{"SELECT COUNT(*) FROM artifacts WHERE run_id = ?", &counters.Artifacts},
	}
	for _, s := range scalars {
		if err := r.db.QueryRowContext(ctx, s.query, runID).Scan(s.dest); err != nil {
			return nil, fmt.Errorf("failed to count: %w", err)
		}
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM tasks WHERE run_id = ? GROUP BY status", runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan task count: %w", err)
		}
		counters.TasksByStatus[status] = count
	}
	return counters, rows.Err()
}
