// Package models contains the domain types shared across the engine,
// the ledger adapters, and the transport layer.
package models

// Stage is one step of the plan/act/check/fix/report loop.
type Stage string

const (
	StagePlan   Stage = "plan"
	StageAct    Stage = "act"
	StageCheck  Stage = "check"
	StageFix    Stage = "fix"
	StageReport Stage = "report"
)

// WorkerStageOrder is the fixed stage sequence a worker walks per iteration.
// Fix is invoked out of band when a result comes back as needs_fix.
var WorkerStageOrder = []Stage{StagePlan, StageAct, StageCheck, StageReport}

// ValidStage reports whether s is a known stage.
func ValidStage(s Stage) bool {
	switch s {
	case StagePlan, StageAct, StageCheck, StageFix, StageReport:
		return true
	}
	return false
}

// ResultStatus is the outcome of a single stage call.
type ResultStatus string

const (
	ResultInProgress ResultStatus = "in_progress"
	ResultSucceeded  ResultStatus = "succeeded"
	ResultFailed     ResultStatus = "failed"
	ResultNeedsFix   ResultStatus = "needs_fix"
)

// ValidResultStatus reports whether s is a known result status.
func ValidResultStatus(s ResultStatus) bool {
	switch s {
	case ResultInProgress, ResultSucceeded, ResultFailed, ResultNeedsFix:
		return true
	}
	return false
}

// TaskStatus tracks a dispatched task in the ledger.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskRetrying  TaskStatus = "retrying"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
)
