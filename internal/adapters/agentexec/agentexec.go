// Package agentexec implements the agent backend as a subprocess
// protocol: each stage call executes a configured command, writing a
// JSON request to its stdin and reading a JSON response from its stdout.
package agentexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/google/uuid"

	"github.com/example/ocswarm/internal/models"
	"github.com/example/ocswarm/internal/ports/secondary"
)

// Backend invokes agent commands as subprocesses.
type Backend struct {
	// Command and Args name the agent executable. The role, stage, and
	// session id are appended as flags.
	Command string
	Args    []string

	// Dir is the working directory for agent processes. Empty means
	// inherit.
	Dir string
}

var _ secondary.AgentBackend = (*Backend)(nil)

// New creates a backend around the given agent command.
func New(command string, args ...string) *Backend {
	return &Backend{Command: command, Args: args}
}

// request is the JSON document written to the agent's stdin.
type request struct {
	SessionID string                       `json:"session_id"`
	Role      string                       `json:"role"`
	Stage     models.Stage                 `json:"stage"`
	Iteration int                          `json:"iteration"`
	Attempt   int                          `json:"attempt,omitempty"`
	Objective models.Objective             `json:"objective"`
	Agent     models.AgentProfile          `json:"agent"`
	Task      *models.AgentTask            `json:"task,omitempty"`
	Results   []*models.AgentResult        `json:"worker_results,omitempty"`
	Feedback  string                       `json:"feedback,omitempty"`
	Policy    models.RunPolicy             `json:"policy"`
	Git       *models.GitConfig            `json:"git,omitempty"`
	Preview   *models.PreviewConfig        `json:"preview,omitempty"`
}

// CreateSession mints a session handle. The protocol is stateless per
// call; the handle exists so agents can correlate calls belonging to one
// run.
func (b *Backend) CreateSession(ctx context.Context, run *models.RunRecord) (string, error) {
	return "sess_" + uuid.New().String()[:8], nil
}

// CancelSession is a no-op: stateless subprocesses hold nothing open.
func (b *Backend) CancelSession(ctx context.Context, sessionID string) error {
	return nil
}

// RunOrchestratorStage executes one orchestrator stage call.
func (b *Backend) RunOrchestratorStage(ctx context.Context, req secondary.OrchestratorStageRequest) (*models.OrchestratorOutput, error) {
	payload := request{
		SessionID: req.Run.SessionID,
		Role:      models.RoleOrchestrator,
		Stage:     req.Stage,
		Iteration: req.Iteration,
		Objective: req.Run.Pack.Objective,
		Agent:     req.Run.Pack.Agents.Orchestrator,
		Results:   req.WorkerResults,
		Feedback:  req.Feedback,
		Policy:    req.Run.Pack.Policy,
		Git:       req.Run.Pack.Git,
		Preview:   req.Run.Pack.Preview,
	}

	var out models.OrchestratorOutput
	if err := b.invoke(ctx, models.RoleOrchestrator, req.Stage, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RunWorkerStage executes one worker stage call for a task.
func (b *Backend) RunWorkerStage(ctx context.Context, req secondary.WorkerStageRequest) (*models.AgentResult, error) {
	payload := request{
		SessionID: req.Run.SessionID,
		Role:      models.RoleWorker,
		Stage:     req.Stage,
		Iteration: req.Iteration,
		Attempt:   req.Attempt,
		Objective: req.Run.Pack.Objective,
		Agent:     req.Run.Pack.Agents.Worker,
		Task:      req.Task,
		Feedback:  req.Feedback,
		Policy:    req.Run.Pack.Policy,
	}

	var res models.AgentResult
	if err := b.invoke(ctx, models.RoleWorker, req.Stage, payload, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (b *Backend) invoke(ctx context.Context, role string, stage models.Stage, payload request, out any) error {
	input, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal agent request: %w", err)
	}

	args := append([]string{}, b.Args...)
	args = append(args, "--role", role, "--stage", string(stage), "--session", payload.SessionID)

	cmd := exec.CommandContext(ctx, b.Command, args...)
	cmd.Dir = b.Dir
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("agent %s %s call failed: %s", role, stage, msg)
	}

	if err := json.Unmarshal(stdout.Bytes(), out); err != nil {
		return fmt.Errorf("agent %s %s call: %w: %v", role, stage, secondary.ErrMalformedOutput, err)
	}
	return nil
}
