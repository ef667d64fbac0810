// Package checklist owns the per-state admission checklists and the
// dedicated review checklist. State checklists gate forward transitions;
// the review checklist is instantiated on a task when it enters REVIEWING.
package checklist

import (
	"fmt"
	"time"

	"github.com/aiflow-dev/aiflow/internal/constants"
	"github.com/aiflow-dev/aiflow/internal/domain"
	aferrors "github.com/aiflow-dev/aiflow/internal/errors"
)

// Registry resolves the checklist items applicable to a state, combining
// the built-in defaults with items derived from project patterns.
type Registry struct {
	patterns []domain.Pattern
}

// NewRegistry creates a Registry. The pattern list may be nil.
func NewRegistry(patterns []domain.Pattern) *Registry {
	return &Registry{patterns: patterns}
}

// defaultItems is the built-in checklist, keyed implicitly by each item's
// ApplicableStates. Items marked required block leaving their state.
//
//nolint:gochecknoglobals // Read-only lookup table
var defaultItems = []domain.ChecklistItem{
	{
		ID:               "understand-requirements",
		Title:            "Understand the requirements",
		Description:      "Read the goal and related requirements until they are unambiguous",
		Required:         true,
		Priority:         constants.ChecklistPriorityHigh,
		ApplicableStates: []constants.WorkflowState{constants.StateUnderstanding},
	},
	{
		ID:               "identify-ambiguities",
		Title:            "Identify ambiguities",
		Description:      "List open questions and assumptions before designing",
		Required:         true,
		Priority:         constants.ChecklistPriorityHigh,
		ApplicableStates: []constants.WorkflowState{constants.StateUnderstanding},
	},
	{
		ID:               "confirm-understanding",
		Title:            "Confirm understanding",
		Description:      "Confirm the interpretation of the goal with the requester",
		Required:         true,
		Priority:         constants.ChecklistPriorityMedium,
		ApplicableStates: []constants.WorkflowState{constants.StateUnderstanding},
	},
	{
		ID:               "create-design-doc",
		Title:            "Create a design document",
		Description:      "Write the design down before implementing",
		Required:         true,
		Priority:         constants.ChecklistPriorityHigh,
		ApplicableStates: []constants.WorkflowState{constants.StateDesigning},
	},
	{
		ID:               "design-approval",
		Title:            "Get design approval",
		Description:      "Have the design reviewed and approved",
		Required:         true,
		Priority:         constants.ChecklistPriorityHigh,
		ApplicableStates: []constants.WorkflowState{constants.StateDesigning},
	},
	{
		ID:               "plan-implementation",
		Title:            "Plan the implementation",
		Description:      "Break the design into implementation steps",
		Required:         false,
		Priority:         constants.ChecklistPriorityMedium,
		ApplicableStates: []constants.WorkflowState{constants.StateDesigning},
	},
	{
		ID:               "write-code",
		Title:            "Write the code",
		Description:      "Implement the design",
		Required:         true,
		Priority:         constants.ChecklistPriorityHigh,
		ApplicableStates: []constants.WorkflowState{constants.StateImplementing},
	},
	{
		ID:               "add-requirement-tags",
		Title:            "Tag code with requirement IDs",
		Description:      "Annotate implementing code with the requirement identifiers it satisfies",
		Required:         true,
		Priority:         constants.ChecklistPriorityMedium,
		ApplicableStates: []constants.WorkflowState{constants.StateImplementing},
	},
	{
		ID:               "follow-patterns",
		Title:            "Follow project patterns",
		Description:      "Check the implementation against the project's registered patterns",
		Required:         false,
		Priority:         constants.ChecklistPriorityMedium,
		ApplicableStates: []constants.WorkflowState{constants.StateImplementing},
	},
	{
		ID:               "create-test-plan",
		Title:            "Create a test plan",
		Description:      "Decide what to test and how before writing tests",
		Required:         true,
		Priority:         constants.ChecklistPriorityHigh,
		ApplicableStates: []constants.WorkflowState{constants.StateTesting},
	},
	{
		ID:               "write-tests",
		Title:            "Write the tests",
		Description:      "Cover the implemented behavior with tests",
		Required:         true,
		Priority:         constants.ChecklistPriorityHigh,
		ApplicableStates: []constants.WorkflowState{constants.StateTesting},
	},
	{
		ID:               "run-tests",
		Title:            "Run the tests",
		Description:      "Run the full test suite and fix failures",
		Required:         true,
		Priority:         constants.ChecklistPriorityHigh,
		ApplicableStates: []constants.WorkflowState{constants.StateTesting},
	},
	{
		ID:               "run-validation",
		Title:            "Run validation",
		Description:      "Run the automated validation and resolve blocking findings",
		Required:         true,
		Priority:         constants.ChecklistPriorityHigh,
		ApplicableStates: []constants.WorkflowState{constants.StateReviewing},
	},
	{
		ID:               "code-quality-review",
		Title:            "Review code quality",
		Description:      "Review the change for clarity, naming, and structure",
		Required:         true,
		Priority:         constants.ChecklistPriorityMedium,
		ApplicableStates: []constants.WorkflowState{constants.StateReviewing},
	},
	{
		ID:               "requirements-verification",
		Title:            "Verify requirements coverage",
		Description:      "Check every targeted requirement is actually satisfied",
		Required:         true,
		Priority:         constants.ChecklistPriorityHigh,
		ApplicableStates: []constants.WorkflowState{constants.StateReviewing},
	},
	{
		ID:               "all-tests-passing",
		Title:            "All tests passing",
		Description:      "Confirm the final test run is green",
		Required:         true,
		Priority:         constants.ChecklistPriorityHigh,
		ApplicableStates: []constants.WorkflowState{constants.StateReadyToCommit},
	},
	{
		ID:               "validation-passed",
		Title:            "Validation passed",
		Description:      "Confirm the aggregate validation result is passing",
		Required:         true,
		Priority:         constants.ChecklistPriorityHigh,
		ApplicableStates: []constants.WorkflowState{constants.StateReadyToCommit},
	},
	{
		ID:               "no-warnings",
		Title:            "No outstanding warnings",
		Description:      "Resolve or consciously accept remaining warnings",
		Required:         false,
		Priority:         constants.ChecklistPriorityLow,
		ApplicableStates: []constants.WorkflowState{constants.StateReadyToCommit},
	},
}

// ItemsForState returns the checklist items applicable to the state for a
// task with the given tags: defaults first, then pattern-derived items in
// pattern definition order.
func (r *Registry) ItemsForState(state constants.WorkflowState, tags []string) []domain.ChecklistItem {
	var items []domain.ChecklistItem
	for _, item := range defaultItems {
		if item.AppliesTo(state, tags) {
			items = append(items, item)
		}
	}
	for i := range r.patterns {
		p := &r.patterns[i]
		if !p.RelevantIn(state) {
			continue
		}
		items = append(items, patternItems(p, state)...)
	}
	return items
}

// patternItems derives the three-step review/apply/verify items for a
// pattern. The steps are required only where the pattern is mandatory.
func patternItems(p *domain.Pattern, state constants.WorkflowState) []domain.ChecklistItem {
	required := p.MandatoryIn(state)
	steps := []struct {
		suffix, title, desc string
	}{
		{"review", "Review pattern: " + p.Title, p.Description},
		{"apply", "Apply pattern: " + p.Title, p.Action},
		{"verify", "Verify pattern: " + p.Title, fmt.Sprintf("Confirm the %s check passes", p.Validation.Type)},
	}
	items := make([]domain.ChecklistItem, 0, len(steps))
	for _, step := range steps {
		items = append(items, domain.ChecklistItem{
			ID:               fmt.Sprintf("pattern-%s-%s", p.ID, step.suffix),
			Title:            step.title,
			Description:      step.desc,
			Required:         required,
			Priority:         constants.ChecklistPriorityMedium,
			ApplicableStates: []constants.WorkflowState{state},
		})
	}
	return items
}

// Initialize ensures the workflow tracks completion entries for every item
// applicable in the state. Existing completion entries are never reset.
func (r *Registry) Initialize(w *domain.Workflow, state constants.WorkflowState, tags []string) {
	if w.Checklists == nil {
		w.Checklists = make(map[string]map[string]domain.ItemCompletion)
	}
	entries, ok := w.Checklists[string(state)]
	if !ok {
		entries = make(map[string]domain.ItemCompletion)
		w.Checklists[string(state)] = entries
	}
	for _, item := range r.ItemsForState(state, tags) {
		if _, exists := entries[item.ID]; !exists {
			entries[item.ID] = domain.ItemCompletion{}
		}
	}
}

// MarkComplete records completion of one item in the given state. Unknown
// items fail with ErrChecklistItemNotFound.
func (r *Registry) MarkComplete(w *domain.Workflow, state constants.WorkflowState, tags []string, itemID, notes string, now time.Time) error {
	var found bool
	for _, item := range r.ItemsForState(state, tags) {
		if item.ID == itemID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("item '%s' in state %s: %w", itemID, state, aferrors.ErrChecklistItemNotFound)
	}

	r.Initialize(w, state, tags)
	completedAt := now.UTC()
	w.Checklists[string(state)][itemID] = domain.ItemCompletion{
		Completed:   true,
		CompletedAt: &completedAt,
		Notes:       notes,
	}
	return nil
}

// IncompleteRequired returns the required items of the state the workflow
// has not completed, in registry order.
func (r *Registry) IncompleteRequired(w *domain.Workflow, state constants.WorkflowState, tags []string) []domain.ChecklistItem {
	var entries map[string]domain.ItemCompletion
	if w.Checklists != nil {
		entries = w.Checklists[string(state)]
	}

	var incomplete []domain.ChecklistItem
	for _, item := range r.ItemsForState(state, tags) {
		if !item.Required {
			continue
		}
		if c, ok := entries[item.ID]; !ok || !c.Completed {
			incomplete = append(incomplete, item)
		}
	}
	return incomplete
}

// IsStateComplete reports whether every required item of the state is done.
func (r *Registry) IsStateComplete(w *domain.Workflow, state constants.WorkflowState, tags []string) bool {
	return len(r.IncompleteRequired(w, state, tags)) == 0
}

// IncompleteError builds the structured gating error for the state, or nil
// when the state checklist is complete.
func (r *Registry) IncompleteError(w *domain.Workflow, state constants.WorkflowState, tags []string) error {
	incomplete := r.IncompleteRequired(w, state, tags)
	if len(incomplete) == 0 {
		return nil
	}
	items := make([]aferrors.IncompleteItem, 0, len(incomplete))
	for _, item := range incomplete {
		items = append(items, aferrors.IncompleteItem{
			ID:          item.ID,
			Title:       item.Title,
			Description: item.Description,
		})
	}
	return &aferrors.ChecklistIncompleteError{
		State:           string(state),
		IncompleteItems: items,
	}
}
