package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/ocswarm/internal/db"
	"github.com/example/ocswarm/internal/models"
)

// newTestDB opens a ledger in a per-test temp file. A file-backed
// database is required here: the connection pool hands concurrent tests
// separate connections, and each :memory: connection is its own database.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// seedRun inserts a minimal queued run and returns its id.
func seedRun(t *testing.T, conn *sql.DB) string {
	t.Helper()
	runs := NewRunRepository(conn)
	run := &models.RunRecord{
		ID:     models.NewRunID(),
		Status: models.RunQueued,
		Pack: &models.OrchestrationPackage{
			Objective: models.Objective{Title: "test objective"},
		},
		CreatedAt: time.Now(),
	}
	require.NoError(t, runs.Create(context.Background(), run))
	return run.ID
}
