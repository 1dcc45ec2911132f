// Package policy contains the pure limit checks enforced at run iteration
// boundaries. Checks evaluate a freshly loaded run without side effects
// and raise typed violations the engine maps to terminal states.
package policy

import (
	"fmt"
	"time"

	"github.com/example/ocswarm/internal/models"
)

// Violation codes. Each maps 1:1 to a terminal run state.
const (
	CodeRunCanceled          = "run_canceled"
	CodeWallClockExceeded    = "wall_clock_exceeded"
	CodeBudgetTokensExceeded = "budget_tokens_exceeded"
	CodeBudgetCostExceeded   = "budget_cost_exceeded"
)

// Violation is a policy breach with a stable machine-readable code.
type Violation struct {
	Code    string
	Message string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("policy violation %s: %s", v.Code, v.Message)
}

// BudgetViolation reports whether the code is one of the budget codes.
func (v *Violation) BudgetViolation() bool {
	return v.Code == CodeBudgetTokensExceeded || v.Code == CodeBudgetCostExceeded
}

// TerminalStatus returns the run status a violation maps to, plus the
// user-visible reason code.
func (v *Violation) TerminalStatus() (models.RunStatus, string) {
	switch v.Code {
	case CodeRunCanceled:
		return models.RunCanceled, models.ReasonCanceled
	case CodeWallClockExceeded:
		return models.RunTimedOut, models.ReasonWallClockExceeded
	default:
		return models.RunFailed, models.ReasonBudgetExceeded
	}
}

// Check evaluates cancellation, wall-clock, and budget limits against a
// freshly loaded run. Returns the first violation found, or nil.
func Check(run *models.RunRecord, pol models.RunPolicy, now time.Time) error {
	if run.CancelRequested {
		return &Violation{Code: CodeRunCanceled, Message: "cancellation requested"}
	}

	if pol.WallClockSeconds > 0 && run.StartedAt != nil {
		elapsed := now.Sub(*run.StartedAt)
		limit := time.Duration(pol.WallClockSeconds) * time.Second
		if elapsed > limit {
			return &Violation{
				Code:    CodeWallClockExceeded,
				Message: fmt.Sprintf("elapsed %s exceeds wall clock limit %s", elapsed.Round(time.Second), limit),
			}
		}
	}

	if pol.BudgetTokens > 0 && run.TokensUsed > pol.BudgetTokens {
		return &Violation{
			Code:    CodeBudgetTokensExceeded,
			Message: fmt.Sprintf("tokens used %d exceeds budget %d", run.TokensUsed, pol.BudgetTokens),
		}
	}

	if pol.BudgetCost > 0 && run.CostUsed > pol.BudgetCost {
		return &Violation{
			Code:    CodeBudgetCostExceeded,
			Message: fmt.Sprintf("cost used %.4f exceeds budget %.4f", run.CostUsed, pol.BudgetCost),
		}
	}

	return nil
}
