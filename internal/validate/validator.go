// Package validate checks workflow consistency: state transitions, state
// history integrity, queue/legacy-file agreement, and pattern compliance.
// Results can be cached on disk so repeated validation runs inside one
// session are cheap.
package validate

import (
	"context"
	"fmt"

	"github.com/aiflow-dev/aiflow/internal/clock"
	"github.com/aiflow-dev/aiflow/internal/constants"
	"github.com/aiflow-dev/aiflow/internal/domain"
	aferrors "github.com/aiflow-dev/aiflow/internal/errors"
	"github.com/aiflow-dev/aiflow/internal/pattern"
	"github.com/aiflow-dev/aiflow/internal/state"
)

// Source identifies where a validation finding was observed.
type Source string

// Validation sources.
const (
	// SourceQueue is the authoritative queue file.
	SourceQueue Source = "queue"

	// SourceFile is the derived legacy task file.
	SourceFile Source = "file"

	// SourceBoth marks a disagreement between the two files.
	SourceBoth Source = "both"
)

// Finding is one validation problem.
type Finding struct {
	// Source is where the problem was observed.
	Source Source `json:"source"`

	// Severity classifies the finding; only error findings block.
	Severity constants.Severity `json:"severity"`

	// Message describes the problem.
	Message string `json:"message"`
}

// Report is the aggregate result of validating one task.
type Report struct {
	// TaskID is the validated task.
	TaskID string `json:"taskId"`

	// State is the task's current workflow state.
	State constants.WorkflowState `json:"state"`

	// Overall is true when no blocking finding and no blocking pattern
	// failure was recorded.
	Overall bool `json:"overall"`

	// Findings lists consistency problems.
	Findings []Finding `json:"findings,omitempty"`

	// Patterns lists the per-pattern verification results for the state.
	Patterns []pattern.Result `json:"patterns,omitempty"`
}

// Validator runs workflow validation for one project.
type Validator struct {
	verifier *pattern.Verifier
	clk      clock.Clock
}

// NewValidator creates a Validator. The verifier may be nil when pattern
// verification is not needed.
func NewValidator(verifier *pattern.Verifier, clk clock.Clock) *Validator {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Validator{verifier: verifier, clk: clk}
}

// ValidateTransition checks that moving from one state to the next is the
// single legal forward step, returning a structured error otherwise.
func ValidateTransition(from, to constants.WorkflowState) error {
	if state.IsValidTransition(from, to) {
		return nil
	}
	next, _ := state.Next(from)
	return &aferrors.InvalidTransitionError{
		From:      string(from),
		To:        string(to),
		ValidNext: string(next),
	}
}

// ValidateHistory checks the workflow's state history for corruption. On
// top of the structural checks this rejects a current state that regressed
// behind, or skipped more than one step past, the last recorded state.
func ValidateHistory(taskID string, w *domain.Workflow) error {
	if err := state.ValidateHistory(taskID, w); err != nil {
		return err
	}
	if len(w.StateHistory) == 0 {
		return nil
	}

	last := w.StateHistory[len(w.StateHistory)-1].State
	lastIdx := state.Index(last)
	curIdx := state.Index(w.CurrentState)
	if curIdx < lastIdx {
		return &aferrors.HistoryCorruptionError{
			TaskID: taskID,
			Reason: fmt.Sprintf("current state %s regressed behind recorded state %s", w.CurrentState, last),
		}
	}
	if curIdx-lastIdx > 1 {
		return &aferrors.HistoryCorruptionError{
			TaskID: taskID,
			Reason: fmt.Sprintf("current state %s skipped ahead of recorded state %s", w.CurrentState, last),
		}
	}
	return nil
}

// CheckConsistency compares the queue task against the legacy file view and
// reports disagreements in the essential fields. A nil legacy task yields a
// file-source finding because the derived view is missing.
func CheckConsistency(task *domain.Task, legacy *domain.LegacyTask) []Finding {
	if task == nil {
		return nil
	}
	if legacy == nil {
		return []Finding{{
			Source:   SourceFile,
			Severity: constants.SeverityWarning,
			Message:  fmt.Sprintf("%s is missing for active task %s", constants.LegacyTaskFileName, task.ID),
		}}
	}

	var findings []Finding
	derived := domain.LegacyFromTask(task)
	if legacy.TaskID != derived.TaskID {
		findings = append(findings, Finding{
			Source:   SourceBoth,
			Severity: constants.SeverityError,
			Message:  fmt.Sprintf("task id mismatch: queue has %s, file has %s", derived.TaskID, legacy.TaskID),
		})
	}
	if legacy.OriginalGoal != derived.OriginalGoal {
		findings = append(findings, Finding{
			Source:   SourceBoth,
			Severity: constants.SeverityError,
			Message:  fmt.Sprintf("goal mismatch: queue has %q, file has %q", derived.OriginalGoal, legacy.OriginalGoal),
		})
	}
	if legacy.Status != derived.Status {
		findings = append(findings, Finding{
			Source:   SourceBoth,
			Severity: constants.SeverityError,
			Message:  fmt.Sprintf("status mismatch: queue derives %s, file has %s", derived.Status, legacy.Status),
		})
	}
	queueState, fileState := currentState(derived.Workflow), currentState(legacy.Workflow)
	if queueState != fileState {
		findings = append(findings, Finding{
			Source:   SourceBoth,
			Severity: constants.SeverityError,
			Message:  fmt.Sprintf("workflow state mismatch: queue has %s, file has %s", queueState, fileState),
		})
	}
	return findings
}

// currentState extracts the normalized state, empty when no workflow.
func currentState(w *domain.Workflow) constants.WorkflowState {
	if w == nil {
		return ""
	}
	return constants.NormalizeState(string(w.CurrentState))
}

// ValidateTask runs the full validation for a task: history integrity,
// queue/file consistency, and the state's relevant patterns. The overall
// result is the conjunction of all blocking checks.
func (v *Validator) ValidateTask(ctx context.Context, task *domain.Task, legacy *domain.LegacyTask, patterns []domain.Pattern) (*Report, error) {
	// Check for cancellation at entry
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	report := &Report{TaskID: task.ID, Overall: true}
	if task.Workflow != nil {
		report.State = task.Workflow.CurrentState
	}

	if task.Workflow != nil {
		if err := ValidateHistory(task.ID, task.Workflow); err != nil {
			report.Overall = false
			report.Findings = append(report.Findings, Finding{
				Source:   SourceQueue,
				Severity: constants.SeverityError,
				Message:  err.Error(),
			})
		}
	}

	for _, f := range CheckConsistency(task, legacy) {
		if f.Severity == constants.SeverityError {
			report.Overall = false
		}
		report.Findings = append(report.Findings, f)
	}

	if v.verifier != nil && report.State != "" {
		relevant := pattern.ForState(patterns, report.State)
		results, err := v.verifier.VerifyAll(ctx, relevant)
		if err != nil {
			return nil, err
		}
		report.Patterns = results
		for _, r := range results {
			if !r.Passed && r.Blocking {
				report.Overall = false
			}
		}
	}
	return report, nil
}
