package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ocswarm/internal/models"
)

func TestFormatIssues(t *testing.T) {
	got := FormatIssues([]Issue{
		{Path: "stage", Message: "expected \"plan\", got \"act\""},
		{Path: "dispatches[0].task_id", Message: "task_id is empty"},
	})

	want := "- stage: expected \"plan\", got \"act\"\n- dispatches[0].task_id: task_id is empty\n"
	assert.Equal(t, want, got)
}

func TestValidateOrchestratorOutputNil(t *testing.T) {
	issues := ValidateOrchestratorOutput(models.StagePlan, nil, nil)
	require.Len(t, issues, 1)
	assert.Equal(t, "$", issues[0].Path)
}

func TestValidateOrchestratorOutputStageMismatch(t *testing.T) {
	out := &models.OrchestratorOutput{Stage: models.StageAct, Status: models.ResultSucceeded}
	issues := ValidateOrchestratorOutput(models.StagePlan, out, nil)

	require.NotEmpty(t, issues)
	assert.Equal(t, "stage", issues[0].Path)
}

func TestValidatePlanDuplicateAndEmptyIDs(t *testing.T) {
	out := &models.OrchestratorOutput{
		Stage:  models.StagePlan,
		Status: models.ResultSucceeded,
		PlannedTasks: []models.PlannedTask{
			{ID: "T1"},
			{ID: "T1"},
			{ID: ""},
		},
	}

	issues := ValidateOrchestratorOutput(models.StagePlan, out, nil)
	assert.Len(t, issues, 2)
}

func TestChecklistCrossValidation(t *testing.T) {
	checklist := []string{"T1", "T2"}

	plan := &models.OrchestratorOutput{
		Stage:        models.StagePlan,
		Status:       models.ResultSucceeded,
		PlannedTasks: []models.PlannedTask{{ID: "T1"}, {ID: "T9"}},
	}
	issues := ValidateOrchestratorOutput(models.StagePlan, plan, checklist)
	require.Len(t, issues, 1)
	assert.Equal(t, "planned_tasks[1].id", issues[0].Path)

	act := &models.OrchestratorOutput{
		Stage:  models.StageAct,
		Status: models.ResultSucceeded,
		Dispatches: []models.WorkerDispatch{
			{TaskID: "T2", AgentID: "agent-1", Objective: "do T2"},
			{TaskID: "T7", AgentID: "agent-2", Objective: "do T7"},
		},
	}
	issues = ValidateOrchestratorOutput(models.StageAct, act, checklist)
	require.Len(t, issues, 1)
	assert.Equal(t, "dispatches[1].task_id", issues[0].Path)

	// No checklist disables cross-validation.
	issues = ValidateOrchestratorOutput(models.StageAct, act, nil)
	assert.Empty(t, issues)
}

func TestValidateActShape(t *testing.T) {
	out := &models.OrchestratorOutput{
		Stage:  models.StageAct,
		Status: models.ResultSucceeded,
		Dispatches: []models.WorkerDispatch{
			{TaskID: "", AgentID: "", Objective: "", MaxIterations: -1},
		},
	}

	issues := ValidateOrchestratorOutput(models.StageAct, out, nil)
	paths := make(map[string]bool)
	for _, issue := range issues {
		paths[issue.Path] = true
	}

	assert.True(t, paths["dispatches[0].task_id"])
	assert.True(t, paths["dispatches[0].agent_id"])
	assert.True(t, paths["dispatches[0].objective"])
	assert.True(t, paths["dispatches[0].max_iterations"])
}

func TestValidateTask(t *testing.T) {
	task := &models.AgentTask{
		ID:        "task_1",
		RunID:     "run_1",
		AgentID:   "agent-1",
		Objective: "implement the widget",
		Worker:    models.AgentProfile{Name: "worker", Model: "m1"},
		Loop:      models.TaskLoop{MaxIterations: 3},
		RequiredEvidence: []models.EvidenceRequirement{
			{Type: "test_log", Required: true},
		},
	}
	assert.Empty(t, ValidateTask(task))

	task.Loop.MaxIterations = 0
	task.Objective = ""
	issues := ValidateTask(task)
	assert.Len(t, issues, 2)
}

func TestValidateResult(t *testing.T) {
	res := &models.AgentResult{
		ID:     "res_1",
		TaskID: "task_1",
		RunID:  "run_1",
		Stage:  models.StageCheck,
		Status: models.ResultSucceeded,
	}
	assert.Empty(t, ValidateResult(res))

	res.Stage = "deploy"
	res.Status = "done"
	res.Metrics.Tokens = -1
	issues := ValidateResult(res)
	assert.Len(t, issues, 3)
}
