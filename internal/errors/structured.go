package errors

import (
	"errors"
	"fmt"
	"strings"
)

// InvalidTransitionError reports an illegal workflow state transition.
// It carries both states plus the valid successor so the CLI can render
// a remediation hint. Matches ErrInvalidTransition via errors.Is().
type InvalidTransitionError struct {
	// From is the task's current workflow state.
	From string
	// To is the requested target state.
	To string
	// ValidNext is the only legal successor of From (empty for the terminal state).
	ValidNext string
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	if e.ValidNext == "" {
		return fmt.Sprintf("invalid state transition from %s to %s: %s is terminal", e.From, e.To, e.From)
	}
	return fmt.Sprintf("invalid state transition from %s to %s: valid next state is %s", e.From, e.To, e.ValidNext)
}

// Is reports whether target is ErrInvalidTransition.
func (e *InvalidTransitionError) Is(target error) bool {
	return errors.Is(target, ErrInvalidTransition)
}

// IncompleteItem identifies a required checklist item that blocks a transition.
type IncompleteItem struct {
	// ID is the stable checklist item id.
	ID string `json:"id"`
	// Title is the short human-readable title.
	Title string `json:"title"`
	// Description explains what the item requires.
	Description string `json:"description"`
}

// ChecklistIncompleteError reports a transition blocked by the state
// checklist gate. It carries the state and every incomplete required item.
// Matches ErrChecklistIncomplete via errors.Is().
type ChecklistIncompleteError struct {
	// State is the workflow state whose checklist is incomplete.
	State string
	// IncompleteItems lists the required items that are not complete.
	IncompleteItems []IncompleteItem
}

// Error implements the error interface.
func (e *ChecklistIncompleteError) Error() string {
	ids := make([]string, 0, len(e.IncompleteItems))
	for _, item := range e.IncompleteItems {
		ids = append(ids, item.ID)
	}
	return fmt.Sprintf("state checklist incomplete for %s: %s", e.State, strings.Join(ids, ", "))
}

// Is reports whether target is ErrChecklistIncomplete.
func (e *ChecklistIncompleteError) Is(target error) bool {
	return errors.Is(target, ErrChecklistIncomplete)
}

// HistoryCorruptionError reports a corrupted workflow history. Corruption is
// surfaced as a hard error instructing the user to inspect the file; it is
// never auto-repaired. Matches ErrHistoryCorruption via errors.Is().
type HistoryCorruptionError struct {
	// TaskID identifies the corrupted task (may be empty for the legacy file).
	TaskID string
	// Reason describes the specific corruption detected.
	Reason string
}

// Error implements the error interface.
func (e *HistoryCorruptionError) Error() string {
	if e.TaskID == "" {
		return fmt.Sprintf("workflow history corruption: %s (inspect the state file manually)", e.Reason)
	}
	return fmt.Sprintf("workflow history corruption in task %s: %s (inspect the state file manually)", e.TaskID, e.Reason)
}

// Is reports whether target is ErrHistoryCorruption.
func (e *HistoryCorruptionError) Is(target error) bool {
	return errors.Is(target, ErrHistoryCorruption)
}
