package db

// SchemaSQL is the complete schema for fresh installs.
//
// This is the single source of truth for the ledger schema. All repository
// tests load it via GetSchemaSQL() so test schemas never drift from
// production. Do not hardcode CREATE TABLE statements in test files.
const SchemaSQL = `
-- Runs (one row per orchestration run; budget counters live here)
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL CHECK(status IN ('queued', 'running', 'succeeded', 'failed', 'canceled', 'timed_out')) DEFAULT 'queued',
	reason TEXT,
	cancel_requested INTEGER NOT NULL DEFAULT 0,
	session_id TEXT,
	pack TEXT NOT NULL,
	tokens_used INTEGER NOT NULL DEFAULT 0,
	cost_used REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	started_at DATETIME,
	finished_at DATETIME
);

-- Run events (append-only; event_id is per-run monotonic starting at 1)
CREATE TABLE IF NOT EXISTS run_events (
	run_id TEXT NOT NULL,
	event_id INTEGER NOT NULL,
	type TEXT NOT NULL,
	data TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (run_id, event_id),
	FOREIGN KEY (run_id) REFERENCES runs(id)
);

-- Tasks (dispatched worker tasks; payload is the full task JSON)
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	iteration INTEGER NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('pending', 'running', 'retrying', 'succeeded', 'failed')) DEFAULT 'pending',
	retries INTEGER NOT NULL DEFAULT 0,
	payload TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (run_id) REFERENCES runs(id)
);
CREATE INDEX IF NOT EXISTS idx_tasks_run ON tasks(run_id);

-- Results (one row per stage call; payload is the full result JSON)
CREATE TABLE IF NOT EXISTS results (
	id TEXT PRIMARY KEY,
	task_id TEXT,
	run_id TEXT NOT NULL,
	role TEXT NOT NULL,
	iteration INTEGER NOT NULL,
	attempt INTEGER NOT NULL,
	stage TEXT NOT NULL,
	status TEXT NOT NULL,
	summary TEXT,
	payload TEXT NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	tokens INTEGER NOT NULL DEFAULT 0,
	cost REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (run_id) REFERENCES runs(id)
);
CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id, created_at);

-- Evidence (fanned out from results for querying)
CREATE TABLE IF NOT EXISTS evidence (
	id TEXT NOT NULL,
	result_id TEXT NOT NULL,
	run_id TEXT NOT NULL,
	type TEXT NOT NULL,
	uri TEXT,
	description TEXT,
	hash TEXT,
	metadata TEXT,
	PRIMARY KEY (result_id, id),
	FOREIGN KEY (run_id) REFERENCES runs(id)
);
CREATE INDEX IF NOT EXISTS idx_evidence_run ON evidence(run_id);

-- Artifacts (fanned out from results for querying)
CREATE TABLE IF NOT EXISTS artifacts (
	id TEXT NOT NULL,
	result_id TEXT NOT NULL,
	run_id TEXT NOT NULL,
	type TEXT,
	path TEXT NOT NULL,
	description TEXT,
	PRIMARY KEY (result_id, id),
	FOREIGN KEY (run_id) REFERENCES runs(id)
);
CREATE INDEX IF NOT EXISTS idx_artifacts_run ON artifacts(run_id);
`

// GetSchemaSQL returns the authoritative schema.
func GetSchemaSQL() string {
	return SchemaSQL
}
