package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/ocswarm/internal/core/policy"
	"github.com/example/ocswarm/internal/models"
	"github.com/example/ocswarm/internal/ports/secondary"
)

// runFailure is a domain-level terminal failure: the run ends as failed
// with a stable reason code, but nothing in the machinery broke.
type runFailure struct {
	Reason  string
	Message string
}

func (f *runFailure) Error() string {
	return fmt.Sprintf("%s: %s", f.Reason, f.Message)
}

// Engine drives runs through the plan/act/check/fix/report state machine.
// One Execute call owns one run for its whole duration; concurrent
// Execute calls for different runs only share the ledger.
type Engine struct {
	runs    secondary.RunRepository
	tasks   secondary.TaskRepository
	results secondary.ResultRepository
	backend secondary.AgentBackend
	git     secondary.GitWorkspace
	preview secondary.PreviewHost
	emitter *Emitter
}

// NewEngine wires an engine over the ledger and the external boundaries.
// git and preview may be nil when the deployment has no use for them;
// runs configured to need them then fail at startup.
func NewEngine(
	runs secondary.RunRepository,
	tasks secondary.TaskRepository,
	results secondary.ResultRepository,
	events secondary.EventRepository,
	backend secondary.AgentBackend,
	git secondary.GitWorkspace,
	preview secondary.PreviewHost,
) *Engine {
	return &Engine{
		runs:    runs,
		tasks:   tasks,
		results: results,
		backend: backend,
		git:     git,
		preview: preview,
		emitter: NewEmitter(events),
	}
}

// Execute drives a queued run to a terminal state. It blocks until the
// run finishes and always leaves the run terminal, even on internal
// errors. The returned error reflects the machinery, not the run outcome:
// a run that fails its checks returns nil here.
func (e *Engine) Execute(ctx context.Context, runID string) error {
	run, err := e.runs.GetByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	if run.Status != models.RunQueued {
		return fmt.Errorf("run %s is %s, not queued", runID, run.Status)
	}

	startedAt := time.Now()
	if err := e.runs.MarkStarted(ctx, runID, startedAt); err != nil {
		return fmt.Errorf("failed to start run %s: %w", runID, err)
	}
	run.Status = models.RunRunning
	run.StartedAt = &startedAt
	e.emitter.Emit(ctx, runID, models.EventRunStarted, map[string]any{
		"objective": run.Pack.Objective.Title,
	})

	loopErr := e.execute(ctx, run)
	e.finish(ctx, run, loopErr)
	return nil
}

// execute sets up the run's session, swarm, and preview, runs the loop,
// and tears everything down. The returned error carries the terminal
// classification.
func (e *Engine) execute(ctx context.Context, run *models.RunRecord) error {
	sessionID, err := e.backend.CreateSession(ctx, run)
	if err != nil {
		return stageErrorf(CodeInternalError, "create session: %v", err)
	}
	run.SessionID = sessionID
	if err := e.runs.SetSession(ctx, run.ID, sessionID); err != nil {
		return stageErrorf(CodeInternalError, "persist session: %v", err)
	}
	e.emitter.Emit(ctx, run.ID, models.EventSessionStarted, map[string]any{
		"session_id": sessionID,
	})
	defer func() {
		// Teardown must run even when ctx is already canceled.
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := e.backend.CancelSession(cleanupCtx, sessionID); err != nil {
			e.emitter.Emit(cleanupCtx, run.ID, models.EventRunWarning, map[string]any{
				"message": "failed to cancel session: " + err.Error(),
			})
		}
	}()

	var swarm *SwarmManager
	if run.Pack.Git != nil && run.Pack.Git.Enabled {
		if e.git == nil {
			return stageErrorf(CodeInternalError, "run requires git but no workspace is configured")
		}
		swarm = NewSwarmManager(run.ID, *run.Pack.Git, e.git, e.emitter)
		if err := swarm.Init(ctx); err != nil {
			return stageErrorf(CodeInternalError, "init git swarm: %v", err)
		}
		defer func() {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()
			swarm.Cleanup(cleanupCtx)
		}()
	}

	var preview *PreviewManager
	if run.Pack.Preview != nil {
		if e.preview == nil {
			return stageErrorf(CodeInternalError, "run requires a preview but no host is configured")
		}
		preview = NewPreviewManager(e.preview, e.emitter)
		if err := preview.Start(ctx, run.ID, *run.Pack.Preview); err != nil {
			if run.Pack.Preview.Required {
				return &runFailure{Reason: models.ReasonPreviewFailed, Message: err.Error()}
			}
			e.emitter.Emit(ctx, run.ID, models.EventRunWarning, map[string]any{
				"message": "preview failed to start: " + err.Error(),
			})
		}
		if !run.Pack.Preview.DisableAutoStop {
			defer func() {
				cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				preview.Stop(cleanupCtx, run.ID)
			}()
		}
	}

	return e.runLoop(ctx, run, swarm, preview)
}

// runLoop is the orchestrator iteration loop. Each iteration starts with
// a policy check against freshly loaded run state, then walks
// plan, act (with the worker wave), check, and report. Report runs only
// after a succeeded check; any other check verdict gets one orchestrator
// fix call and another iteration, or fails the run when none remain.
func (e *Engine) runLoop(ctx context.Context, run *models.RunRecord, swarm *SwarmManager, preview *PreviewManager) error {
	maxIterations := run.Pack.Policy.MaxOrchestratorIterations
	if maxIterations < 1 {
		maxIterations = 1
	}

	// A checklist in the run inputs is authoritative for the whole run.
	// Without one, each iteration's plan output becomes the checklist the
	// act dispatches of that iteration are validated against.
	inputChecklist := models.ChecklistIDs(run.Pack.Objective.Inputs)

	for iteration := 1; iteration <= maxIterations; iteration++ {
		fresh, err := e.runs.GetByID(ctx, run.ID)
		if err != nil {
			return stageErrorf(CodeInternalError, "reload run: %v", err)
		}
		if err := policy.Check(fresh, run.Pack.Policy, time.Now()); err != nil {
			return err
		}

		planOut, err := e.orchestratorStage(ctx, run, models.StagePlan, iteration, nil, inputChecklist)
		if err != nil {
			return err
		}
		checklist := inputChecklist
		if len(checklist) == 0 {
			for _, task := range planOut.PlannedTasks {
				checklist = append(checklist, task.ID)
			}
		}

		actOut, err := e.orchestratorStage(ctx, run, models.StageAct, iteration, nil, checklist)
		if err != nil {
			return err
		}

		workerResults, err := e.dispatchWorkers(ctx, run, swarm, iteration, actOut.Dispatches)
		if err != nil {
			return err
		}

		if swarm != nil {
			if err := swarm.ProcessMergeQueue(ctx); err != nil {
				return stageErrorf(CodeInternalError, "merge queue: %v", err)
			}
		}

		checkOut, err := e.orchestratorStage(ctx, run, models.StageCheck, iteration, workerResults, checklist)
		if err != nil {
			return err
		}
		if checkOut.Status != models.ResultSucceeded {
			// Only a succeeded check reaches report. A non-succeeded check
			// on the last iteration fails the run; earlier iterations get a
			// fix call and another pass through the loop.
			if iteration == maxIterations {
				return &runFailure{Reason: models.ReasonChecksFailed, Message: checkOut.Summary}
			}
			if _, err := e.orchestratorStage(ctx, run, models.StageFix, iteration, workerResults, checklist); err != nil {
				return err
			}
			continue
		}

		reportOut, err := e.orchestratorStage(ctx, run, models.StageReport, iteration, workerResults, checklist)
		if err != nil {
			return err
		}

		if err := e.validateEvidenceRefs(ctx, run.ID, reportOut.EvidenceRefs); err != nil {
			return err
		}
		if run.Pack.Preview != nil && run.Pack.Preview.Required && (preview == nil || !preview.Ready()) {
			return &runFailure{
				Reason:  models.ReasonPreviewFailed,
				Message: "required preview never became ready",
			}
		}

		switch reportOut.Status {
		case models.ResultSucceeded:
			return nil
		case models.ResultFailed:
			return &runFailure{Reason: models.ReasonChecksFailed, Message: reportOut.Summary}
		default:
			// needs_fix or in_progress: another iteration.
			continue
		}
	}

	return &runFailure{
		Reason:  models.ReasonMaxIterationsExhausted,
		Message: fmt.Sprintf("no succeeded report within %d iterations", maxIterations),
	}
}

// orchestratorStage runs one orchestrator stage through the retry wrapper
// and records its result in the ledger.
func (e *Engine) orchestratorStage(ctx context.Context, run *models.RunRecord, stage models.Stage, iteration int, workerResults []*models.AgentResult, checklist []string) (*models.OrchestratorOutput, error) {
	out, err := e.callOrchestratorStage(ctx, run, stage, iteration, workerResults, checklist)
	if err != nil {
		return nil, err
	}

	res := &models.AgentResult{
		ID:        models.NewResultID(),
		RunID:     run.ID,
		Role:      models.RoleOrchestrator,
		Iteration: iteration,
		Attempt:   1,
		Stage:     stage,
		Status:    out.Status,
		Summary:   out.Summary,
		Metrics:   out.Metrics,
	}
	if err := e.results.Save(ctx, res); err != nil {
		return nil, stageErrorf(CodeInternalError, "persist orchestrator result: %v", err)
	}
	if out.Metrics.Tokens > 0 || out.Metrics.Cost > 0 {
		if err := e.runs.AddBudget(ctx, run.ID, out.Metrics.Tokens, out.Metrics.Cost); err != nil {
			return nil, stageErrorf(CodeInternalError, "charge budget: %v", err)
		}
	}
	e.emitter.Emit(ctx, run.ID, models.OrchestratorStageCompleted(stage), map[string]any{
		"iteration": iteration,
		"status":    out.Status,
	})
	return out, nil
}

// validateEvidenceRefs resolves every report evidence reference against
// evidence recorded in the ledger. A dangling reference fails the run.
func (e *Engine) validateEvidenceRefs(ctx context.Context, runID string, refs []string) error {
	if len(refs) == 0 {
		return nil
	}
	items, err := e.results.ListEvidence(ctx, runID)
	if err != nil {
		return stageErrorf(CodeInternalError, "load evidence: %v", err)
	}
	known := make(map[string]bool, len(items))
	for _, item := range items {
		known[item.ID] = true
	}
	for _, ref := range refs {
		if !known[ref] {
			return &runFailure{
				Reason:  models.ReasonInvalidEvidenceRefs,
				Message: fmt.Sprintf("report references unknown evidence %q", ref),
			}
		}
	}
	return nil
}

// finish classifies the loop's outcome, records the terminal transition,
// and emits the terminal event. A nil loopErr is a successful run.
func (e *Engine) finish(ctx context.Context, run *models.RunRecord, loopErr error) {
	// Teardown already happened; the ledger write must survive a dead ctx.
	finishCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	status := models.RunSucceeded
	reason := ""
	eventType := models.EventRunCompleted
	payload := map[string]any{}

	var violation *policy.Violation
	var failure *runFailure
	var stageErr *StageError

	switch {
	case loopErr == nil:

	case errors.As(loopErr, &violation):
		status, reason = violation.TerminalStatus()
		payload["message"] = violation.Message
		if violation.BudgetViolation() {
			e.emitter.Emit(finishCtx, run.ID, models.EventPolicyBudgetExceeded, map[string]any{
				"code":    violation.Code,
				"message": violation.Message,
			})
		}
		switch status {
		case models.RunCanceled:
			eventType = models.EventRunCanceled
		case models.RunTimedOut:
			eventType = models.EventRunTimedOut
		default:
			eventType = models.EventRunFailed
		}

	case errors.As(loopErr, &failure):
		status = models.RunFailed
		reason = failure.Reason
		eventType = models.EventRunFailed
		payload["message"] = failure.Message

	case errors.Is(loopErr, context.Canceled):
		status = models.RunCanceled
		reason = models.ReasonCanceled
		eventType = models.EventRunCanceled

	case errors.As(loopErr, &stageErr):
		status = models.RunFailed
		reason = stageErr.Code
		eventType = models.EventRunFailed
		payload["message"] = stageErr.Message

	default:
		status = models.RunFailed
		reason = models.ReasonInternalError
		eventType = models.EventRunFailed
		payload["message"] = loopErr.Error()
	}
	if reason != "" {
		payload["reason"] = reason
	}

	if err := e.runs.Finish(finishCtx, run.ID, status, reason, time.Now()); err != nil {
		e.emitter.Emit(finishCtx, run.ID, models.EventRunWarning, map[string]any{
			"message": "failed to record terminal state: " + err.Error(),
		})
	}
	e.emitter.Emit(finishCtx, run.ID, eventType, payload)
}
