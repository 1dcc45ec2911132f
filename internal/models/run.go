package models

import "time"

// RunStatus is the lifecycle state of a run. Terminal states are reached
// exactly once; finished_at is set on the first terminal transition.
type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunCanceled  RunStatus = "canceled"
	RunTimedOut  RunStatus = "timed_out"
)

// Terminal reports whether s is a terminal run status.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunSucceeded, RunFailed, RunCanceled, RunTimedOut:
		return true
	}
	return false
}

// Terminal reason codes recorded on the run when it finishes.
const (
	ReasonCanceled               = "run_canceled"
	ReasonWallClockExceeded      = "wall_clock_exceeded"
	ReasonBudgetExceeded         = "budget_exceeded"
	ReasonChecksFailed           = "orchestrator_checks_failed"
	ReasonInvalidEvidenceRefs    = "invalid_report_evidence_refs"
	ReasonPreviewFailed          = "preview_failed"
	ReasonMaxIterationsExhausted = "max_iterations_exhausted"
	ReasonInternalError          = "internal_error"
)

// RunRecord is the durable state of one run. It is owned by the ledger and
// mutated only through engine-issued transitions.
type RunRecord struct {
	ID              string                `json:"id"`
	Status          RunStatus             `json:"status"`
	Reason          string                `json:"reason,omitempty"`
	CancelRequested bool                  `json:"cancel_requested"`
	SessionID       string                `json:"session_id,omitempty"`
	Pack            *OrchestrationPackage `json:"pack"`

	TokensUsed int64   `json:"tokens_used"`
	CostUsed   float64 `json:"cost_used"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
