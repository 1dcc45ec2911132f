package app

import "fmt"

// Stage failure codes. Orchestrator-origin codes are fatal to the run;
// worker-origin codes fail the current task attempt and feed the task
// retry loop.
const (
	CodeOrchestratorTimeout       = "orchestrator_timeout"
	CodeWorkerTimeout             = "worker_timeout"
	CodeOrchestratorOutputInvalid = "orchestrator_output_invalid"
	CodeWorkerOutputInvalid       = "worker_output_invalid"
	CodeTaskInvalid               = "task_invalid"
	CodeInternalError             = "internal_error"
)

// StageError is a typed failure from a stage call or task construction,
// carrying a stable machine-readable code.
type StageError struct {
	Code    string
	Message string
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func stageErrorf(code, format string, args ...any) *StageError {
	return &StageError{Code: code, Message: fmt.Sprintf(format, args...)}
}
