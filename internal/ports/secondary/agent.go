package secondary

import (
	"context"
	"errors"

	"github.com/example/ocswarm/internal/models"
)

// ErrMalformedOutput marks backend failures caused by output that could
// not even be parsed. The engine counts these against the
// malformed-output retry budget instead of treating them as fatal.
var ErrMalformedOutput = errors.New("malformed agent output")

// IsMalformedOutput reports whether err is a malformed-output failure.
func IsMalformedOutput(err error) bool {
	return errors.Is(err, ErrMalformedOutput)
}

// OrchestratorStageRequest carries one orchestrator stage call.
type OrchestratorStageRequest struct {
	Run           *models.RunRecord
	Stage         models.Stage
	Iteration     int
	WorkerResults []*models.AgentResult

	// Feedback holds formatted validation issues from a rejected prior
	// attempt so the agent can self-correct. Empty on first attempts.
	Feedback string
}

// WorkerStageRequest carries one worker stage call.
type WorkerStageRequest struct {
	Run       *models.RunRecord
	Task      *models.AgentTask
	Stage     models.Stage
	Iteration int
	Attempt   int
	Feedback  string
}

// AgentBackend is the boundary to the external system that actually
// executes agent prompts. All four calls are opaque, may fail, and may
// exceed their deadline; the engine stops waiting on timeout but cannot
// abort the underlying call.
type AgentBackend interface {
	// CreateSession opens an external session for the run.
	CreateSession(ctx context.Context, run *models.RunRecord) (string, error)

	// CancelSession closes the run's external session. Best-effort.
	CancelSession(ctx context.Context, sessionID string) error

	// RunOrchestratorStage executes one orchestrator stage.
	RunOrchestratorStage(ctx context.Context, req OrchestratorStageRequest) (*models.OrchestratorOutput, error)

	// RunWorkerStage executes one worker stage for a task.
	RunWorkerStage(ctx context.Context, req WorkerStageRequest) (*models.AgentResult, error)
}
