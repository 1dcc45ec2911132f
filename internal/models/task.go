package models

import "time"

// AgentTask is the unit of work handed to a worker agent. It is
// constructed by the engine from a worker dispatch directive, never by
// the orchestrator directly.
type AgentTask struct {
	ID                 string                `json:"id"`
	RunID              string                `json:"run_id"`
	AgentID            string                `json:"agent_id"`
	Iteration          int                   `json:"iteration"`
	Worker             AgentProfile          `json:"worker"`
	Loop               TaskLoop              `json:"loop"`
	Objective          string                `json:"objective"`
	Inputs             map[string]any        `json:"inputs,omitempty"`
	Constraints        TaskConstraints       `json:"constraints"`
	AcceptanceCriteria []string              `json:"acceptance_criteria,omitempty"`
	RequiredEvidence   []EvidenceRequirement `json:"required_evidence,omitempty"`
}

// TaskLoop bounds a worker's internal stage loop.
type TaskLoop struct {
	MaxIterations int     `json:"max_iterations"`
	AllowedStages []Stage `json:"allowed_stages,omitempty"`
}

// TaskConstraints limit one task's execution.
type TaskConstraints struct {
	TimeoutSeconds int      `json:"timeout_seconds,omitempty"`
	TokenBudget    int64    `json:"token_budget,omitempty"`
	AllowedSkills  []string `json:"allowed_skills,omitempty"`
}

// EvidenceRequirement names one evidence kind a task must produce.
type EvidenceRequirement struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// RequiredEvidenceTypes returns the types of the requirements flagged as
// required.
func (t *AgentTask) RequiredEvidenceTypes() []string {
	var types []string
	for _, req := range t.RequiredEvidence {
		if req.Required {
			types = append(types, req.Type)
		}
	}
	return types
}

// TaskSnapshot is the ledger's view of a dispatched task.
type TaskSnapshot struct {
	Task      *AgentTask `json:"task"`
	Status    TaskStatus `json:"status"`
	Retries   int        `json:"retries"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// WorkerDispatch is one orchestrator-issued directive to execute a task
// via a worker agent. Produced by the act stage.
type WorkerDispatch struct {
	TaskID             string                `json:"task_id"`
	AgentID            string                `json:"agent_id"`
	Objective          string                `json:"objective"`
	Inputs             map[string]any        `json:"inputs,omitempty"`
	MaxIterations      int                   `json:"max_iterations,omitempty"`
	TimeoutSeconds     int                   `json:"timeout_seconds,omitempty"`
	TokenBudget        int64                 `json:"token_budget,omitempty"`
	AllowedSkills      []string              `json:"allowed_skills,omitempty"`
	AcceptanceCriteria []string              `json:"acceptance_criteria,omitempty"`
	RequiredEvidence   []EvidenceRequirement `json:"required_evidence,omitempty"`
}
