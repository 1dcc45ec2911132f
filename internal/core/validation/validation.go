// Package validation contains schema-shape validators for agent output.
// Validators return structured path+message issues instead of opaque
// errors so the engine can feed them back to the agent for
// self-correction.
package validation

import (
	"fmt"
	"strings"

	"github.com/example/ocswarm/internal/models"
)

// Issue is one validation finding at a JSON-ish path.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// FormatIssues renders issues as "- path: message" lines, the shape
// injected into a retried stage call's feedback field.
func FormatIssues(issues []Issue) string {
	var b strings.Builder
	for _, issue := range issues {
		fmt.Fprintf(&b, "- %s: %s\n", issue.Path, issue.Message)
	}
	return b.String()
}

// ValidateOrchestratorOutput checks the shape of one orchestrator stage
// output. checklist, when non-empty, is the authoritative plan checklist
// the plan/act ids must reference.
func ValidateOrchestratorOutput(stage models.Stage, out *models.OrchestratorOutput, checklist []string) []Issue {
	var issues []Issue

	if out == nil {
		return []Issue{{Path: "$", Message: "output is empty"}}
	}
	if out.Stage != stage {
		issues = append(issues, Issue{Path: "stage", Message: fmt.Sprintf("expected %q, got %q", stage, out.Stage)})
	}
	if !models.ValidResultStatus(out.Status) {
		issues = append(issues, Issue{Path: "status", Message: fmt.Sprintf("unknown status %q", out.Status)})
	}

	switch stage {
	case models.StagePlan:
		issues = append(issues, validatePlan(out, checklist)...)
	case models.StageAct:
		issues = append(issues, validateAct(out, checklist)...)
	case models.StageReport:
		for i, ref := range out.EvidenceRefs {
			if ref == "" {
				issues = append(issues, Issue{Path: fmt.Sprintf("evidence_refs[%d]", i), Message: "reference is empty"})
			}
		}
	}

	return issues
}

func validatePlan(out *models.OrchestratorOutput, checklist []string) []Issue {
	var issues []Issue

	seen := make(map[string]bool, len(out.PlannedTasks))
	for i, task := range out.PlannedTasks {
		path := fmt.Sprintf("planned_tasks[%d].id", i)
		if task.ID == "" {
			issues = append(issues, Issue{Path: path, Message: "id is empty"})
			continue
		}
		if seen[task.ID] {
			issues = append(issues, Issue{Path: path, Message: fmt.Sprintf("duplicate id %q", task.ID)})
		}
		seen[task.ID] = true
		issues = append(issues, checkChecklistRef(checklist, task.ID, path)...)
	}

	return issues
}

func validateAct(out *models.OrchestratorOutput, checklist []string) []Issue {
	var issues []Issue

	for i, d := range out.Dispatches {
		base := fmt.Sprintf("dispatches[%d]", i)
		if d.TaskID == "" {
			issues = append(issues, Issue{Path: base + ".task_id", Message: "task_id is empty"})
		} else {
			issues = append(issues, checkChecklistRef(checklist, d.TaskID, base+".task_id")...)
		}
		if d.AgentID == "" {
			issues = append(issues, Issue{Path: base + ".agent_id", Message: "agent_id is empty"})
		}
		if d.Objective == "" {
			issues = append(issues, Issue{Path: base + ".objective", Message: "objective is empty"})
		}
		if d.MaxIterations < 0 {
			issues = append(issues, Issue{Path: base + ".max_iterations", Message: "must not be negative"})
		}
		for j, req := range d.RequiredEvidence {
			if req.Type == "" {
				issues = append(issues, Issue{Path: fmt.Sprintf("%s.required_evidence[%d].type", base, j), Message: "type is empty"})
			}
		}
	}

	return issues
}

// checkChecklistRef verifies id against the authoritative checklist.
// A missing checklist disables cross-validation entirely.
func checkChecklistRef(checklist []string, id, path string) []Issue {
	if len(checklist) == 0 {
		return nil
	}
	for _, known := range checklist {
		if known == id {
			return nil
		}
	}
	return []Issue{{Path: path, Message: fmt.Sprintf("id %q not present in plan checklist", id)}}
}

// ValidateTask checks an engine-constructed task. Failures here indicate
// an internal construction defect, never retryable agent output.
func ValidateTask(task *models.AgentTask) []Issue {
	var issues []Issue

	if task == nil {
		return []Issue{{Path: "$", Message: "task is empty"}}
	}
	if task.ID == "" {
		issues = append(issues, Issue{Path: "id", Message: "id is empty"})
	}
	if task.RunID == "" {
		issues = append(issues, Issue{Path: "run_id", Message: "run_id is empty"})
	}
	if task.AgentID == "" {
		issues = append(issues, Issue{Path: "agent_id", Message: "agent_id is empty"})
	}
	if task.Objective == "" {
		issues = append(issues, Issue{Path: "objective", Message: "objective is empty"})
	}
	if task.Worker.Name == "" {
		issues = append(issues, Issue{Path: "worker.name", Message: "worker profile name is empty"})
	}
	if task.Loop.MaxIterations < 1 {
		issues = append(issues, Issue{Path: "loop.max_iterations", Message: "must be at least 1"})
	}
	for _, stage := range task.Loop.AllowedStages {
		if !models.ValidStage(stage) {
			issues = append(issues, Issue{Path: "loop.allowed_stages", Message: fmt.Sprintf("unknown stage %q", stage)})
		}
	}
	if task.Constraints.TimeoutSeconds < 0 {
		issues = append(issues, Issue{Path: "constraints.timeout_seconds", Message: "must not be negative"})
	}
	if task.Constraints.TokenBudget < 0 {
		issues = append(issues, Issue{Path: "constraints.token_budget", Message: "must not be negative"})
	}
	for i, req := range task.RequiredEvidence {
		if req.Type == "" {
			issues = append(issues, Issue{Path: fmt.Sprintf("required_evidence[%d].type", i), Message: "type is empty"})
		}
	}

	return issues
}

// ValidateResult checks the shape of a worker stage result.
func ValidateResult(res *models.AgentResult) []Issue {
	var issues []Issue

	if res == nil {
		return []Issue{{Path: "$", Message: "result is empty"}}
	}
	if res.ID == "" {
		issues = append(issues, Issue{Path: "id", Message: "id is empty"})
	}
	if res.TaskID == "" {
		issues = append(issues, Issue{Path: "task_id", Message: "task_id is empty"})
	}
	if !models.ValidStage(res.Stage) {
		issues = append(issues, Issue{Path: "stage", Message: fmt.Sprintf("unknown stage %q", res.Stage)})
	}
	if !models.ValidResultStatus(res.Status) {
		issues = append(issues, Issue{Path: "status", Message: fmt.Sprintf("unknown status %q", res.Status)})
	}
	if res.Metrics.DurationMS < 0 {
		issues = append(issues, Issue{Path: "metrics.duration_ms", Message: "must not be negative"})
	}
	if res.Metrics.Tokens < 0 {
		issues = append(issues, Issue{Path: "metrics.tokens", Message: "must not be negative"})
	}
	if res.Metrics.Cost < 0 {
		issues = append(issues, Issue{Path: "metrics.cost", Message: "must not be negative"})
	}
	for i, item := range res.Evidence {
		base := fmt.Sprintf("evidence[%d]", i)
		if item.ID == "" {
			issues = append(issues, Issue{Path: base + ".id", Message: "id is empty"})
		}
		if item.Type == "" {
			issues = append(issues, Issue{Path: base + ".type", Message: "type is empty"})
		}
	}
	for i, art := range res.Artifacts {
		if art.Path == "" {
			issues = append(issues, Issue{Path: fmt.Sprintf("artifacts[%d].path", i), Message: "path is empty"})
		}
	}
	if res.Next.Stage != "" && !models.ValidStage(res.Next.Stage) {
		issues = append(issues, Issue{Path: "next.stage", Message: fmt.Sprintf("unknown stage %q", res.Next.Stage)})
	}

	return issues
}
