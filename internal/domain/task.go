// Package domain provides shared domain types for the aiflow workflow engine.
// These types are used across all internal packages to ensure consistent data structures.
//
// This package follows strict import rules:
//   - CAN import: internal/constants, internal/errors, standard library
//   - MUST NOT import: any other internal packages
//
// JSON field names are load-bearing: external AI agents read the persisted
// files, so the camelCase names below are part of the on-disk contract.
package domain

import (
	"time"

	"github.com/aiflow-dev/aiflow/internal/constants"
)

// Task represents a single unit of work in the priority queue.
//
// Example JSON representation:
//
//	{
//	    "id": "task-1766829600000",
//	    "goal": "Implement user authentication",
//	    "status": "ACTIVE",
//	    "priority": "MEDIUM",
//	    "tags": ["backend"],
//	    "createdAt": "2026-08-24T10:00:00Z",
//	    "activatedAt": "2026-08-24T10:00:00Z",
//	    "workflow": {...}
//	}
type Task struct {
	// ID is the unique identifier for the task.
	// Format: task-<epoch-ms>, with a short suffix appended when two
	// creations land within the same millisecond.
	ID string `json:"id"`

	// Goal is the trimmed task goal, 10..500 characters.
	Goal string `json:"goal"`

	// Status is the queue-level state (QUEUED, ACTIVE, DONE, ARCHIVED).
	Status constants.TaskStatus `json:"status"`

	// Priority controls auto-activation ordering. Defaults to MEDIUM.
	Priority constants.Priority `json:"priority"`

	// Tags is an ordered sequence of labels (may be empty).
	Tags []string `json:"tags"`

	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"createdAt"`

	// ActivatedAt is when the task was first activated (nil if never activated).
	ActivatedAt *time.Time `json:"activatedAt,omitempty"`

	// CompletedAt is when the task was completed (nil if not yet complete).
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// EstimatedTime is the human phrase the task was created with
	// (e.g. "2 days"). Parse with ParseEstimatedHours.
	EstimatedTime string `json:"estimatedTime,omitempty"`

	// ActualTime is the elapsed hours between activation and completion.
	ActualTime *float64 `json:"actualTime,omitempty"`

	// Requirements is a set of opaque requirement identifier strings.
	Requirements []string `json:"requirements,omitempty"`

	// Workflow tracks lifecycle state. Present iff the task has ever been
	// activated; a demoted task keeps its workflow so it is resumable.
	Workflow *Workflow `json:"workflow,omitempty"`

	// ReviewChecklist is instantiated once the task enters REVIEWING.
	ReviewChecklist *ReviewChecklist `json:"reviewChecklist,omitempty"`
}

// Workflow tracks a task's position in the six-state lifecycle.
type Workflow struct {
	// CurrentState is the phase the task is currently in.
	CurrentState constants.WorkflowState `json:"currentState"`

	// StateEnteredAt is when CurrentState was entered.
	StateEnteredAt time.Time `json:"stateEnteredAt"`

	// StateHistory lists previously completed states in order. The current
	// state MUST NOT appear here, and indices must be strictly increasing.
	StateHistory []StateHistoryEntry `json:"stateHistory"`

	// Checklists holds per-state checklist completion, keyed by state name
	// then by item id.
	Checklists map[string]map[string]ItemCompletion `json:"checklists,omitempty"`
}

// StateHistoryEntry records a previously occupied workflow state.
type StateHistoryEntry struct {
	// State is the workflow state that was occupied.
	State constants.WorkflowState `json:"state"`

	// EnteredAt is when the state was entered.
	EnteredAt time.Time `json:"enteredAt"`
}

// NewWorkflow creates a fresh workflow positioned at UNDERSTANDING.
func NewWorkflow(now time.Time) *Workflow {
	return &Workflow{
		CurrentState:   constants.StateUnderstanding,
		StateEnteredAt: now,
		StateHistory:   []StateHistoryEntry{},
	}
}

// Clone returns a deep copy of the workflow. Demotion preserves the workflow
// verbatim, and callers must not alias history slices across tasks.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	out := &Workflow{
		CurrentState:   w.CurrentState,
		StateEnteredAt: w.StateEnteredAt,
		StateHistory:   make([]StateHistoryEntry, len(w.StateHistory)),
	}
	copy(out.StateHistory, w.StateHistory)
	if w.Checklists != nil {
		out.Checklists = make(map[string]map[string]ItemCompletion, len(w.Checklists))
		for state, items := range w.Checklists {
			cloned := make(map[string]ItemCompletion, len(items))
			for id, completion := range items {
				cloned[id] = completion
			}
			out.Checklists[state] = cloned
		}
	}
	return out
}

// IsActive reports whether the task has status ACTIVE.
func (t *Task) IsActive() bool {
	return t.Status == constants.TaskStatusActive
}
