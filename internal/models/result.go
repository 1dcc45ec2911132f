package models

// AgentResult is the output of one stage call, persisted as a unit. The
// evidence and artifact lists are additionally fanned out into their own
// ledger collections for querying.
type AgentResult struct {
	ID        string       `json:"id"`
	TaskID    string       `json:"task_id,omitempty"`
	RunID     string       `json:"run_id"`
	Role      string       `json:"role"`
	Iteration int          `json:"iteration"`
	Attempt   int          `json:"attempt"`
	Stage     Stage        `json:"stage"`
	Status    ResultStatus `json:"status"`
	Summary   string       `json:"summary,omitempty"`

	Checks    []CheckOutcome `json:"checks,omitempty"`
	Evidence  []EvidenceItem `json:"evidence,omitempty"`
	Artifacts []Artifact     `json:"artifacts,omitempty"`
	Metrics   Metrics        `json:"metrics"`
	Next      NextAction     `json:"next,omitempty"`
}

// Agent roles attached to results.
const (
	RoleOrchestrator = "orchestrator"
	RoleWorker       = "worker"
)

// CheckOutcome is one verification the agent ran.
type CheckOutcome struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// EvidenceItem is a verifiable artifact reference proving a done-criterion
// was met. An item only counts for gating when URI is non-empty and Hash
// is at least 8 characters.
type EvidenceItem struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	URI         string            `json:"uri"`
	Description string            `json:"description,omitempty"`
	Hash        string            `json:"hash"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// MinEvidenceHashLen is the integrity floor for evidence hashes.
const MinEvidenceHashLen = 8

// Intact reports whether the item satisfies the integrity invariant.
func (e EvidenceItem) Intact() bool {
	return e.URI != "" && len(e.Hash) >= MinEvidenceHashLen
}

// Artifact is a produced file or object referenced by a result.
type Artifact struct {
	ID          string `json:"id"`
	Type        string `json:"type,omitempty"`
	Path        string `json:"path"`
	Description string `json:"description,omitempty"`
}

// Metrics is per-stage-call resource usage.
type Metrics struct {
	DurationMS int64   `json:"duration_ms"`
	Tokens     int64   `json:"tokens"`
	Cost       float64 `json:"cost"`
}

// NextAction is the agent's recommendation for what to do next.
type NextAction struct {
	Stage  Stage  `json:"stage,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// OrchestratorOutput is the validated shape of one orchestrator stage
// call. Which fields are meaningful depends on the stage: plan carries
// PlannedTasks, act carries Dispatches, report carries EvidenceRefs.
type OrchestratorOutput struct {
	Stage        Stage            `json:"stage"`
	Status       ResultStatus     `json:"status"`
	Summary      string           `json:"summary,omitempty"`
	PlannedTasks []PlannedTask    `json:"planned_tasks,omitempty"`
	Dispatches   []WorkerDispatch `json:"dispatches,omitempty"`
	EvidenceRefs []string         `json:"evidence_refs,omitempty"`
	Metrics      Metrics          `json:"metrics"`
}

// PlannedTask is one checklist entry emitted by the plan stage.
type PlannedTask struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
}
