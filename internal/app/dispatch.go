package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/ocswarm/internal/core/policy"
	"github.com/example/ocswarm/internal/core/validation"
	"github.com/example/ocswarm/internal/models"
)

// dispatchWorkers executes one act wave: a fixed pool of maxWorkers
// goroutines pulls dispatch directives from a shared channel, so at most
// maxWorkers tasks are in flight at any instant regardless of wave size.
// Returns the final result of every task. Task failure after exhausting
// retries is represented as a failed result, not an error; only internal
// defects, policy violations, and context cancellation abort the wave.
func (e *Engine) dispatchWorkers(ctx context.Context, run *models.RunRecord, swarm *SwarmManager, iteration int, dispatches []models.WorkerDispatch) ([]*models.AgentResult, error) {
	if len(dispatches) == 0 {
		return nil, nil
	}

	maxWorkers := run.Pack.Policy.MaxWorkers
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if maxWorkers > len(dispatches) {
		maxWorkers = len(dispatches)
	}

	work := make(chan models.WorkerDispatch, len(dispatches))
	for _, d := range dispatches {
		work <- d
	}
	close(work)

	var mu sync.Mutex
	var finals []*models.AgentResult

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < maxWorkers; i++ {
		g.Go(func() error {
			for d := range work {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				res, err := e.executeTask(gctx, run, swarm, iteration, d)
				if err != nil {
					return err
				}
				mu.Lock()
				finals = append(finals, res)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return finals, nil
}

// buildTask materializes an orchestrator dispatch directive into a task.
func buildTask(run *models.RunRecord, iteration int, d models.WorkerDispatch) *models.AgentTask {
	maxIter := d.MaxIterations
	if maxIter < 1 {
		maxIter = 1
	}
	return &models.AgentTask{
		ID:        d.TaskID,
		RunID:     run.ID,
		AgentID:   d.AgentID,
		Iteration: iteration,
		Worker:    run.Pack.Agents.Worker,
		Loop: models.TaskLoop{
			MaxIterations: maxIter,
			AllowedStages: models.WorkerStageOrder,
		},
		Objective: d.Objective,
		Inputs:    d.Inputs,
		Constraints: models.TaskConstraints{
			TimeoutSeconds: d.TimeoutSeconds,
			TokenBudget:    d.TokenBudget,
			AllowedSkills:  d.AllowedSkills,
		},
		AcceptanceCriteria: d.AcceptanceCriteria,
		RequiredEvidence:   d.RequiredEvidence,
	}
}

// executeTask drives one task through its attempt loop. A stage failure
// or a failed/unfixable result consumes one attempt; attempts beyond
// max_worker_task_retries are not granted and the task finishes as a
// synthesized failed result.
func (e *Engine) executeTask(ctx context.Context, run *models.RunRecord, swarm *SwarmManager, iteration int, d models.WorkerDispatch) (*models.AgentResult, error) {
	task := buildTask(run, iteration, d)
	if issues := validation.ValidateTask(task); len(issues) > 0 {
		return nil, stageErrorf(CodeTaskInvalid, "task %s: %s", d.TaskID, validation.FormatIssues(issues))
	}

	if err := e.tasks.Upsert(ctx, task, models.TaskPending, 0); err != nil {
		return nil, stageErrorf(CodeInternalError, "persist task %s: %v", task.ID, err)
	}

	attempts := run.Pack.Policy.MaxWorkerTaskRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt == 1 {
			e.emitter.Emit(ctx, run.ID, models.EventWorkerTaskStarted, map[string]any{
				"task_id":  task.ID,
				"agent_id": task.AgentID,
			})
		} else {
			e.emitter.Emit(ctx, run.ID, models.EventWorkerTaskRetry, map[string]any{
				"task_id": task.ID,
				"attempt": attempt,
			})
			if err := e.tasks.Upsert(ctx, task, models.TaskRetrying, attempt-1); err != nil {
				return nil, stageErrorf(CodeInternalError, "persist task %s: %v", task.ID, err)
			}
		}
		if err := e.tasks.Upsert(ctx, task, models.TaskRunning, attempt-1); err != nil {
			return nil, stageErrorf(CodeInternalError, "persist task %s: %v", task.ID, err)
		}

		final, err := e.runTaskAttempt(ctx, run, swarm, task, iteration, attempt)
		if err != nil {
			var se *StageError
			if errors.As(err, &se) && (se.Code == CodeWorkerOutputInvalid || se.Code == CodeWorkerTimeout) {
				e.emitter.Emit(ctx, run.ID, models.EventWorkerTaskStageFailed, map[string]any{
					"task_id": task.ID,
					"attempt": attempt,
					"code":    se.Code,
					"message": se.Message,
				})
				continue
			}
			return nil, err
		}
		if final != nil {
			if err := e.tasks.Upsert(ctx, task, models.TaskSucceeded, attempt-1); err != nil {
				return nil, stageErrorf(CodeInternalError, "persist task %s: %v", task.ID, err)
			}
			e.emitter.Emit(ctx, run.ID, models.EventWorkerTaskCompleted, map[string]any{
				"task_id":  task.ID,
				"agent_id": task.AgentID,
				"attempts": attempt,
			})
			return final, nil
		}
		// Attempt ran to a decision but the task did not succeed.
	}

	if err := e.tasks.Upsert(ctx, task, models.TaskFailed, attempts-1); err != nil {
		return nil, stageErrorf(CodeInternalError, "persist task %s: %v", task.ID, err)
	}
	synthesized := &models.AgentResult{
		ID:        models.NewResultID(),
		TaskID:    task.ID,
		RunID:     run.ID,
		Role:      models.RoleWorker,
		Iteration: iteration,
		Attempt:   attempts,
		Stage:     models.StageReport,
		Status:    models.ResultFailed,
		Summary:   "retries_exhausted",
	}
	if err := e.results.Save(ctx, synthesized); err != nil {
		return nil, stageErrorf(CodeInternalError, "persist result for %s: %v", task.ID, err)
	}
	e.emitter.Emit(ctx, run.ID, models.EventWorkerTaskStageFailed, map[string]any{
		"task_id": task.ID,
		"reason":  "retries_exhausted",
	})
	return synthesized, nil
}

// runTaskAttempt drives one attempt through the task's inner iteration
// loop. Each iteration walks the worker stage sequence from plan; a
// needs_fix verdict gets one fix call and, when the fix succeeds, the
// next iteration starts back at plan. Returns (finalResult, nil) when an
// iteration ends in a succeeded report, (nil, nil) when the attempt
// failed on its own merits or ran out of iterations, and a non-nil error
// when the stage call itself broke down.
func (e *Engine) runTaskAttempt(ctx context.Context, run *models.RunRecord, swarm *SwarmManager, task *models.AgentTask, iteration, attempt int) (*models.AgentResult, error) {
	if swarm != nil {
		if _, err := swarm.EnsureLane(ctx, task.AgentID); err != nil {
			return nil, stageErrorf(CodeInternalError, "lane for %s: %v", task.AgentID, err)
		}
	}

	maxIterations := task.Loop.MaxIterations
	if maxIterations < 1 {
		maxIterations = 1
	}

	// Evidence accumulates for the whole attempt: the gate credits items
	// produced in earlier iterations of the same attempt.
	var produced []models.EvidenceItem

	for taskIter := 1; taskIter <= maxIterations; taskIter++ {
	stages:
		for _, stage := range models.WorkerStageOrder {
			res, err := e.callWorkerStage(ctx, run, task, stage, iteration, attempt)
			if err != nil {
				return nil, err
			}
			if err := e.recordWorkerResult(ctx, run, task, res, iteration, attempt, stage); err != nil {
				return nil, err
			}
			produced = append(produced, res.Evidence...)

			// The evidence gate is advisory on check and binding on report:
			// a succeeded result with missing required evidence is degraded
			// to needs_fix so the fix stage gets one shot at producing it.
			if stage == models.StageCheck || stage == models.StageReport {
				required := task.RequiredEvidenceTypes()
				if res.Status == models.ResultSucceeded && len(required) > 0 {
					gate := policy.GateEvidence(required, produced)
					if !gate.Passed {
						res.Status = models.ResultNeedsFix
						e.emitter.Emit(ctx, run.ID, models.EventWorkerEvidenceMissing, map[string]any{
							"task_id": task.ID,
							"stage":   stage,
							"missing": gate.MissingTypes,
							"issues":  gate.Issues,
						})
					}
				}
			}

			switch res.Status {
			case models.ResultFailed:
				e.emitter.Emit(ctx, run.ID, models.EventWorkerTaskStageFailed, map[string]any{
					"task_id": task.ID,
					"stage":   stage,
					"attempt": attempt,
					"summary": res.Summary,
				})
				return nil, nil

			case models.ResultNeedsFix:
				fixed, err := e.runFixStage(ctx, run, task, iteration, attempt)
				if err != nil {
					return nil, err
				}
				produced = append(produced, fixed.Evidence...)
				if fixed.Status != models.ResultSucceeded {
					e.emitter.Emit(ctx, run.ID, models.EventWorkerTaskStageFailed, map[string]any{
						"task_id": task.ID,
						"stage":   models.StageFix,
						"attempt": attempt,
						"summary": fixed.Summary,
					})
					return nil, nil
				}
				// Fixed: the next iteration restarts at plan.
				break stages

			case models.ResultSucceeded, models.ResultInProgress:
				// Proceed to the next stage.
			}

			if stage == models.StageReport && res.Status == models.ResultSucceeded {
				if swarm != nil {
					if err := e.commitLane(ctx, swarm, task); err != nil {
						return nil, err
					}
				}
				return res, nil
			}
		}
	}

	// Ran out of iterations without a succeeded report.
	return nil, nil
}

// runFixStage invokes the out-of-band fix stage once.
func (e *Engine) runFixStage(ctx context.Context, run *models.RunRecord, task *models.AgentTask, iteration, attempt int) (*models.AgentResult, error) {
	fixed, err := e.callWorkerStage(ctx, run, task, models.StageFix, iteration, attempt)
	if err != nil {
		return nil, err
	}
	if err := e.recordWorkerResult(ctx, run, task, fixed, iteration, attempt, models.StageFix); err != nil {
		return nil, err
	}
	e.emitter.Emit(ctx, run.ID, models.EventWorkerFixCompleted, map[string]any{
		"task_id": task.ID,
		"status":  fixed.Status,
	})
	return fixed, nil
}

// recordWorkerResult stamps identity fields the backend may omit,
// persists the result, charges its usage to the run budget, and re-checks
// policy so a blown budget stops the wave promptly.
func (e *Engine) recordWorkerResult(ctx context.Context, run *models.RunRecord, task *models.AgentTask, res *models.AgentResult, iteration, attempt int, stage models.Stage) error {
	if res.ID == "" {
		res.ID = models.NewResultID()
	}
	res.TaskID = task.ID
	res.RunID = run.ID
	res.Role = models.RoleWorker
	res.Iteration = iteration
	res.Attempt = attempt
	res.Stage = stage

	if err := e.results.Save(ctx, res); err != nil {
		return stageErrorf(CodeInternalError, "persist result for %s: %v", task.ID, err)
	}
	e.emitter.Emit(ctx, run.ID, models.WorkerStageCompleted(stage), map[string]any{
		"task_id": task.ID,
		"status":  res.Status,
		"attempt": attempt,
	})

	if res.Metrics.Tokens > 0 || res.Metrics.Cost > 0 {
		if err := e.runs.AddBudget(ctx, run.ID, res.Metrics.Tokens, res.Metrics.Cost); err != nil {
			return stageErrorf(CodeInternalError, "charge budget for %s: %v", task.ID, err)
		}
	}

	fresh, err := e.runs.GetByID(ctx, run.ID)
	if err != nil {
		return stageErrorf(CodeInternalError, "reload run %s: %v", run.ID, err)
	}
	return policy.Check(fresh, run.Pack.Policy, time.Now())
}

// commitLane commits the task's lane and queues its merge into the
// integration branch. A clean lane commits nothing and queues nothing.
func (e *Engine) commitLane(ctx context.Context, swarm *SwarmManager, task *models.AgentTask) error {
	commit, err := swarm.CommitAll(ctx, task.AgentID, "ocswarm: "+task.Objective)
	if err != nil {
		return stageErrorf(CodeInternalError, "commit lane for %s: %v", task.AgentID, err)
	}
	if commit == "" {
		return nil
	}
	swarm.EnqueueMerge(ctx, swarm.laneBranch(task.AgentID), swarm.IntegrationBranch(), task.AgentID)
	return nil
}
