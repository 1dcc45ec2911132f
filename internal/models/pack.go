package models

// OrchestrationPackage is the immutable configuration a run executes
// against. It is supplied once at run creation and snapshotted onto the
// run record.
type OrchestrationPackage struct {
	Objective Objective      `json:"objective"`
	Agents    AgentProfiles  `json:"agents"`
	Policy    RunPolicy      `json:"policy"`
	Preview   *PreviewConfig `json:"preview,omitempty"`
	Git       *GitConfig     `json:"git,omitempty"`
}

// Objective describes what the run is trying to accomplish.
type Objective struct {
	Title        string          `json:"title"`
	Description  string          `json:"description,omitempty"`
	Inputs       map[string]any  `json:"inputs,omitempty"`
	DoneCriteria []DoneCriterion `json:"done_criteria,omitempty"`
}

// DoneCriterion names the evidence kinds that prove one piece of the
// objective is complete.
type DoneCriterion struct {
	ID               string   `json:"id"`
	Description      string   `json:"description"`
	RequiredEvidence []string `json:"required_evidence,omitempty"`
}

// AgentProfiles pairs the orchestrator profile with the worker profile.
type AgentProfiles struct {
	Orchestrator AgentProfile `json:"orchestrator"`
	Worker       AgentProfile `json:"worker"`
}

// AgentProfile identifies an agent by name and model reference.
type AgentProfile struct {
	Name  string `json:"name"`
	Model string `json:"model"`
}

// RunPolicy bounds a run: iteration and retry limits, worker concurrency,
// stage timeouts, and the token/cost budget ceiling.
type RunPolicy struct {
	MaxOrchestratorIterations int `json:"max_orchestrator_iterations"`
	MaxWorkerTaskRetries      int `json:"max_worker_task_retries"`
	MaxMalformedOutputRetries int `json:"max_malformed_output_retries"`
	MaxWorkers                int `json:"max_workers"`

	// StageTimeoutSeconds applies to every stage call unless overridden
	// for a specific stage in StageTimeouts.
	StageTimeoutSeconds int            `json:"stage_timeout_seconds,omitempty"`
	StageTimeouts       map[Stage]int  `json:"stage_timeouts,omitempty"`

	WallClockSeconds int     `json:"wall_clock_seconds,omitempty"`
	BudgetTokens     int64   `json:"budget_tokens,omitempty"`
	BudgetCost       float64 `json:"budget_cost,omitempty"`

	Deterministic bool `json:"deterministic,omitempty"`
}

// StageTimeoutFor returns the timeout for one stage in seconds, or 0 when
// the stage call is unbounded.
func (p RunPolicy) StageTimeoutFor(stage Stage) int {
	if t, ok := p.StageTimeouts[stage]; ok {
		return t
	}
	return p.StageTimeoutSeconds
}

// PreviewConfig describes an optional live-preview server observed during
// the run.
type PreviewConfig struct {
	Command             string `json:"command"`
	Dir                 string `json:"dir,omitempty"`
	URL                 string `json:"url"`
	Required            bool   `json:"required,omitempty"`
	DisableAutoStop     bool   `json:"disable_auto_stop,omitempty"`
	ReadyTimeoutSeconds int    `json:"ready_timeout_seconds,omitempty"`
}

// GitConfig enables per-agent lane isolation and the merge queue.
type GitConfig struct {
	Enabled           bool        `json:"enabled"`
	RepoPath          string      `json:"repo_path"`
	BaseBranch        string      `json:"base_branch,omitempty"`
	IntegrationBranch string      `json:"integration_branch,omitempty"`
	WorktreeRoot      string      `json:"worktree_root,omitempty"`
	Identity          GitIdentity `json:"identity,omitempty"`
}

// GitIdentity is the author identity lanes commit with.
type GitIdentity struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// ChecklistInputKey is the run-input key holding the authoritative
// implementation-plan checklist, when one exists. Plan task ids and act
// dispatch ids must reference ids from this checklist.
const ChecklistInputKey = "plan_checklist"

// ChecklistIDs extracts the checklist ids from run inputs. Entries may be
// plain strings or objects carrying an "id" field. Returns nil when no
// checklist is present.
func ChecklistIDs(inputs map[string]any) []string {
	raw, ok := inputs[ChecklistInputKey]
	if !ok {
		return nil
	}
	entries, ok := raw.([]any)
	if !ok {
		return nil
	}
	var ids []string
	for _, entry := range entries {
		switch v := entry.(type) {
		case string:
			ids = append(ids, v)
		case map[string]any:
			if id, ok := v["id"].(string); ok {
				ids = append(ids, id)
			}
		}
	}
	return ids
}
