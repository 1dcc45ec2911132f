package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// RunEvent is one entry of the append-only per-run event log. EventID is a
// strictly increasing integer starting at 1, assigned transactionally by
// the ledger so concurrent emitters never collide or skip.
type RunEvent struct {
	RunID     string          `json:"run_id"`
	EventID   int64           `json:"event_id"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Event types emitted on the run's event stream.
const (
	EventRunStarted     = "run.started"
	EventSessionStarted = "session.started"

	EventAgentOutputInvalid = "agent.output.invalid"

	EventWorkerTaskStarted     = "worker.task.started"
	EventWorkerTaskRetry       = "worker.task.retry"
	EventWorkerTaskCompleted   = "worker.task.completed"
	EventWorkerTaskStageFailed = "worker.task.stage_failed"
	EventWorkerEvidenceMissing = "worker.evidence.missing"
	EventWorkerFixCompleted    = "worker.fix.completed"

	EventGitWorktreeCreated = "git.worktree.created"
	EventGitCommit          = "git.commit"
	EventGitCommitSkipped   = "git.commit.skipped"
	EventGitMergeQueued     = "git.merge.queued"
	EventGitMergeAttempt    = "git.merge.attempt"
	EventGitMergeResult     = "git.merge.result"
	EventGitError           = "git.error"

	EventPolicyBudgetExceeded = "policy.budget.exceeded"

	EventPreviewStarted = "preview.started"
	EventPreviewReady   = "preview.ready"
	EventPreviewStopped = "preview.stopped"

	EventRunCompleted = "run.completed"
	EventRunFailed    = "run.failed"
	EventRunCanceled  = "run.canceled"
	EventRunTimedOut  = "run.timed_out"
	EventRunWarning   = "run.warning"
)

// OrchestratorStageCompleted returns the event type for a finished
// orchestrator stage, e.g. "orchestrator.plan.completed".
func OrchestratorStageCompleted(stage Stage) string {
	return fmt.Sprintf("orchestrator.%s.completed", stage)
}

// WorkerStageCompleted returns the event type for a finished worker stage,
// e.g. "worker.check.completed".
func WorkerStageCompleted(stage Stage) string {
	return fmt.Sprintf("worker.%s.completed", stage)
}
