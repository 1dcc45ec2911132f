package app

import (
	"context"
	"errors"
	"time"

	"github.com/example/ocswarm/internal/core/validation"
	"github.com/example/ocswarm/internal/models"
	"github.com/example/ocswarm/internal/ports/secondary"
)

// stageContext wraps the call in a deadline when the policy bounds the
// stage. Exceeding the deadline makes the engine stop waiting; the
// underlying external call may keep running and its late result is
// discarded.
func stageContext(ctx context.Context, timeoutSeconds int) (context.Context, context.CancelFunc) {
	if timeoutSeconds <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
}

// callOrchestratorStage invokes one orchestrator stage with the
// malformed-output retry loop: up to maxMalformedOutputRetries+1
// attempts, feeding formatted validation issues back into the next
// attempt. Timeouts consume an attempt. Exhaustion is fatal to the run.
func (e *Engine) callOrchestratorStage(ctx context.Context, run *models.RunRecord, stage models.Stage, iteration int, workerResults []*models.AgentResult, checklist []string) (*models.OrchestratorOutput, error) {
	pol := run.Pack.Policy

	attempts := pol.MaxMalformedOutputRetries + 1
	feedback := ""
	lastCode := CodeOrchestratorOutputInvalid

	for attempt := 1; attempt <= attempts; attempt++ {
		callCtx, cancel := stageContext(ctx, pol.StageTimeoutFor(stage))
		out, err := e.backend.RunOrchestratorStage(callCtx, secondary.OrchestratorStageRequest{
			Run:           run,
			Stage:         stage,
			Iteration:     iteration,
			WorkerResults: workerResults,
			Feedback:      feedback,
		})
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				lastCode = CodeOrchestratorTimeout
				e.emitter.Emit(ctx, run.ID, models.EventRunWarning, map[string]any{
					"stage":   stage,
					"attempt": attempt,
					"message": "orchestrator stage timed out",
				})
				continue
			}
			if errors.Is(err, secondary.ErrMalformedOutput) {
				lastCode = CodeOrchestratorOutputInvalid
				feedback = "- $: output was not parseable JSON\n"
				e.emitter.Emit(ctx, run.ID, models.EventAgentOutputInvalid, map[string]any{
					"role":    models.RoleOrchestrator,
					"stage":   stage,
					"attempt": attempt,
					"error":   err.Error(),
				})
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, stageErrorf(CodeInternalError, "orchestrator %s stage: %v", stage, err)
		}

		issues := validation.ValidateOrchestratorOutput(stage, out, checklist)
		if len(issues) == 0 {
			return out, nil
		}

		lastCode = CodeOrchestratorOutputInvalid
		feedback = validation.FormatIssues(issues)
		e.emitter.Emit(ctx, run.ID, models.EventAgentOutputInvalid, map[string]any{
			"role":    models.RoleOrchestrator,
			"stage":   stage,
			"attempt": attempt,
			"issues":  issues,
		})
	}

	return nil, stageErrorf(lastCode, "orchestrator %s stage rejected after %d attempts", stage, attempts)
}

// callWorkerStage invokes one worker stage with the same retry contract.
// Exhaustion here fails the current task attempt, not the run.
func (e *Engine) callWorkerStage(ctx context.Context, run *models.RunRecord, task *models.AgentTask, stage models.Stage, iteration, attempt int) (*models.AgentResult, error) {
	pol := run.Pack.Policy

	timeout := pol.StageTimeoutFor(stage)
	if task.Constraints.TimeoutSeconds > 0 {
		timeout = task.Constraints.TimeoutSeconds
	}

	tries := pol.MaxMalformedOutputRetries + 1
	feedback := ""
	lastCode := CodeWorkerOutputInvalid

	for try := 1; try <= tries; try++ {
		callCtx, cancel := stageContext(ctx, timeout)
		res, err := e.backend.RunWorkerStage(callCtx, secondary.WorkerStageRequest{
			Run:       run,
			Task:      task,
			Stage:     stage,
			Iteration: iteration,
			Attempt:   attempt,
			Feedback:  feedback,
		})
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				lastCode = CodeWorkerTimeout
				e.emitter.Emit(ctx, run.ID, models.EventRunWarning, map[string]any{
					"task_id": task.ID,
					"stage":   stage,
					"attempt": try,
					"message": "worker stage timed out",
				})
				continue
			}
			if errors.Is(err, secondary.ErrMalformedOutput) {
				lastCode = CodeWorkerOutputInvalid
				feedback = "- $: output was not parseable JSON\n"
				e.emitter.Emit(ctx, run.ID, models.EventAgentOutputInvalid, map[string]any{
					"role":    models.RoleWorker,
					"task_id": task.ID,
					"stage":   stage,
					"attempt": try,
					"error":   err.Error(),
				})
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, stageErrorf(CodeInternalError, "worker %s stage for %s: %v", stage, task.ID, err)
		}

		issues := validation.ValidateResult(res)
		if len(issues) == 0 {
			return res, nil
		}

		lastCode = CodeWorkerOutputInvalid
		feedback = validation.FormatIssues(issues)
		e.emitter.Emit(ctx, run.ID, models.EventAgentOutputInvalid, map[string]any{
			"role":    models.RoleWorker,
			"task_id": task.ID,
			"stage":   stage,
			"attempt": try,
			"issues":  issues,
		})
	}

	return nil, stageErrorf(lastCode, "worker %s stage for %s rejected after %d attempts", stage, task.ID, tries)
}
