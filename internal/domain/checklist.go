package domain

import (
	"time"

	"github.com/aiflow-dev/aiflow/internal/constants"
)

// ChecklistItem describes one admission-control item for a workflow state.
// Items are registered in the checklist registry; completion is tracked
// per task inside Workflow.Checklists.
type ChecklistItem struct {
	// ID is the stable item identifier (e.g. "understand-requirements").
	ID string `json:"id"`

	// Title is the short human-readable title.
	Title string `json:"title"`

	// Description explains what the item requires.
	Description string `json:"description"`

	// Required items block state progression until completed.
	Required bool `json:"required"`

	// Priority classifies rendering order (high, medium, low).
	Priority constants.ChecklistPriority `json:"priority"`

	// ApplicableStates lists the states this item belongs to.
	ApplicableStates []constants.WorkflowState `json:"applicableStates"`

	// Condition optionally narrows applicability. A nil condition always
	// applies. Conditions are modeled as data (tag and state sets) rather
	// than closures so they survive serialization.
	Condition *ItemCondition `json:"condition,omitempty"`
}

// ItemCondition narrows a checklist item's applicability based on the active
// task's state and tags. Both clauses must hold when present.
type ItemCondition struct {
	// AnyTag applies the item only when the task carries at least one of
	// these tags.
	AnyTag []string `json:"anyTag,omitempty"`

	// States applies the item only in these states. Empty means any state.
	States []constants.WorkflowState `json:"states,omitempty"`
}

// Matches reports whether the condition holds for the given state and tags.
func (c *ItemCondition) Matches(state constants.WorkflowState, tags []string) bool {
	if c == nil {
		return true
	}
	if len(c.States) > 0 {
		found := false
		for _, s := range c.States {
			if s == state {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(c.AnyTag) > 0 {
		for _, want := range c.AnyTag {
			for _, have := range tags {
				if want == have {
					return true
				}
			}
		}
		return false
	}
	return true
}

// AppliesTo reports whether the item belongs to the given state and its
// condition holds for the task's tags.
func (i *ChecklistItem) AppliesTo(state constants.WorkflowState, tags []string) bool {
	for _, s := range i.ApplicableStates {
		if s == state {
			return i.Condition.Matches(state, tags)
		}
	}
	return false
}

// ItemCompletion tracks per-task completion of a single checklist item.
type ItemCompletion struct {
	// Completed is true once the item has been marked complete.
	Completed bool `json:"completed"`

	// CompletedAt is when the item was completed.
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// Notes is optional free text recorded at completion.
	Notes string `json:"notes,omitempty"`
}
