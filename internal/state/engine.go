// Package state implements the pure workflow state machine: ordering,
// progress, transition validity, and history integrity over the fixed
// six-state sequence. All functions are total and perform no I/O.
//
// Import rules:
//   - CAN import: internal/constants, internal/domain, internal/errors, std lib
//   - MUST NOT import: internal/queue, internal/filesync, internal/cli
package state

import (
	"fmt"
	"math"

	"github.com/aiflow-dev/aiflow/internal/constants"
	"github.com/aiflow-dev/aiflow/internal/domain"
	aferrors "github.com/aiflow-dev/aiflow/internal/errors"
)

// stateIndex maps each state to its position in the sequence.
//
//nolint:gochecknoglobals // Read-only lookup table
var stateIndex = func() map[constants.WorkflowState]int {
	m := make(map[constants.WorkflowState]int, len(constants.StateSequence))
	for i, s := range constants.StateSequence {
		m[s] = i
	}
	return m
}()

// Index returns the position of the state in the sequence, or -1 for
// unknown states.
func Index(s constants.WorkflowState) int {
	if i, ok := stateIndex[s]; ok {
		return i
	}
	return -1
}

// AllStates returns a fresh copy of the ordered state sequence.
func AllStates() []constants.WorkflowState {
	out := make([]constants.WorkflowState, len(constants.StateSequence))
	copy(out, constants.StateSequence)
	return out
}

// Next returns the successor of the state. ok is false for the terminal
// state and for unknown states.
func Next(s constants.WorkflowState) (next constants.WorkflowState, ok bool) {
	i := Index(s)
	if i < 0 || i >= len(constants.StateSequence)-1 {
		return "", false
	}
	return constants.StateSequence[i+1], true
}

// Progress returns the completion percentage for the state: 0, 20, 40, 60,
// 80, or 100. Unknown states report 0.
func Progress(s constants.WorkflowState) int {
	i := Index(s)
	if i < 0 {
		return 0
	}
	return int(math.Round(100 * float64(i) / float64(len(constants.StateSequence)-1)))
}

// IsValidTransition reports whether to is exactly the successor of from.
// The state machine is strictly linear: no backward or skip transitions.
func IsValidTransition(from, to constants.WorkflowState) bool {
	next, ok := Next(from)
	return ok && next == to
}

// Parse normalizes a raw string (trim, uppercase) and checks it against the
// known states.
func Parse(raw string) (constants.WorkflowState, error) {
	s := constants.NormalizeState(raw)
	if Index(s) < 0 {
		return "", fmt.Errorf("%w: %q", aferrors.ErrUnknownState, raw)
	}
	return s, nil
}

// ValidateHistory checks the workflow's history integrity and returns a
// HistoryCorruptionError when it is violated:
//   - the current state appears in the history,
//   - any state in the history is unknown,
//   - history indices are not strictly increasing.
//
// An empty history is valid at any state: a task may advance through several
// states without recording them, and only the first-entered timestamp is
// retained. taskID is used for error reporting only and may be empty.
func ValidateHistory(taskID string, w *domain.Workflow) error {
	if w == nil {
		return nil
	}
	if Index(w.CurrentState) < 0 {
		return &aferrors.HistoryCorruptionError{
			TaskID: taskID,
			Reason: fmt.Sprintf("unknown current state %q", w.CurrentState),
		}
	}

	prev := -1
	for _, entry := range w.StateHistory {
		idx := Index(entry.State)
		if idx < 0 {
			return &aferrors.HistoryCorruptionError{
				TaskID: taskID,
				Reason: fmt.Sprintf("unknown state %q in history", entry.State),
			}
		}
		if entry.State == w.CurrentState {
			return &aferrors.HistoryCorruptionError{
				TaskID: taskID,
				Reason: fmt.Sprintf("current state found in history: %s", w.CurrentState),
			}
		}
		if idx <= prev {
			return &aferrors.HistoryCorruptionError{
				TaskID: taskID,
				Reason: fmt.Sprintf("history is not strictly increasing at %s", entry.State),
			}
		}
		prev = idx
	}
	return nil
}
