package checklist

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiflow-dev/aiflow/internal/constants"
	"github.com/aiflow-dev/aiflow/internal/domain"
	aferrors "github.com/aiflow-dev/aiflow/internal/errors"
)

var testNow = time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

func TestItemsForState_Defaults(t *testing.T) {
	r := NewRegistry(nil)

	tests := []struct {
		state        constants.WorkflowState
		wantIDs      []string
		requiredOnly []string
	}{
		{
			state:        constants.StateUnderstanding,
			wantIDs:      []string{"understand-requirements", "identify-ambiguities", "confirm-understanding"},
			requiredOnly: []string{"understand-requirements", "identify-ambiguities", "confirm-understanding"},
		},
		{
			state:        constants.StateDesigning,
			wantIDs:      []string{"create-design-doc", "design-approval", "plan-implementation"},
			requiredOnly: []string{"create-design-doc", "design-approval"},
		},
		{
			state:        constants.StateReadyToCommit,
			wantIDs:      []string{"all-tests-passing", "validation-passed", "no-warnings"},
			requiredOnly: []string{"all-tests-passing", "validation-passed"},
		},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			items := r.ItemsForState(tt.state, nil)
			ids := make([]string, 0, len(items))
			var required []string
			for _, item := range items {
				ids = append(ids, item.ID)
				if item.Required {
					required = append(required, item.ID)
				}
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.requiredOnly, required)
		})
	}
}

func TestItemsForState_PatternDerived(t *testing.T) {
	r := NewRegistry([]domain.Pattern{{
		ID:             "design-doc",
		Title:          "Design document",
		RequiredStates: []constants.WorkflowState{constants.StateDesigning},
		Validation:     domain.PatternValidation{Type: constants.ValidationFileExists, Rule: "docs/**"},
	}})

	items := r.ItemsForState(constants.StateDesigning, nil)
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	assert.Contains(t, ids, "pattern-design-doc-review")
	assert.Contains(t, ids, "pattern-design-doc-apply")
	assert.Contains(t, ids, "pattern-design-doc-verify")

	for _, item := range items {
		if item.ID == "pattern-design-doc-review" {
			assert.True(t, item.Required, "mandatory pattern steps are required")
		}
	}
}

func TestMarkComplete_And_Gating(t *testing.T) {
	r := NewRegistry(nil)
	w := domain.NewWorkflow(testNow)
	state := constants.StateUnderstanding

	assert.False(t, r.IsStateComplete(w, state, nil))
	incomplete := r.IncompleteRequired(w, state, nil)
	assert.Len(t, incomplete, 3)

	require.NoError(t, r.MarkComplete(w, state, nil, "understand-requirements", "read it twice", testNow))
	require.NoError(t, r.MarkComplete(w, state, nil, "identify-ambiguities", "", testNow))
	assert.False(t, r.IsStateComplete(w, state, nil))

	require.NoError(t, r.MarkComplete(w, state, nil, "confirm-understanding", "", testNow))
	assert.True(t, r.IsStateComplete(w, state, nil))

	entry := w.Checklists[string(state)]["understand-requirements"]
	assert.True(t, entry.Completed)
	assert.Equal(t, "read it twice", entry.Notes)
	require.NotNil(t, entry.CompletedAt)
}

func TestMarkComplete_UnknownItem(t *testing.T) {
	r := NewRegistry(nil)
	w := domain.NewWorkflow(testNow)

	err := r.MarkComplete(w, constants.StateUnderstanding, nil, "no-such-item", "", testNow)
	require.ErrorIs(t, err, aferrors.ErrChecklistItemNotFound)
}

func TestInitialize_DoesNotResetCompletion(t *testing.T) {
	r := NewRegistry(nil)
	w := domain.NewWorkflow(testNow)
	state := constants.StateUnderstanding

	require.NoError(t, r.MarkComplete(w, state, nil, "understand-requirements", "", testNow))
	r.Initialize(w, state, nil)

	assert.True(t, w.Checklists[string(state)]["understand-requirements"].Completed)
	assert.False(t, w.Checklists[string(state)]["identify-ambiguities"].Completed)
}

func TestIncompleteError(t *testing.T) {
	r := NewRegistry(nil)
	w := domain.NewWorkflow(testNow)

	err := r.IncompleteError(w, constants.StateUnderstanding, nil)
	require.Error(t, err)
	require.ErrorIs(t, err, aferrors.ErrChecklistIncomplete)

	var incomplete *aferrors.ChecklistIncompleteError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, string(constants.StateUnderstanding), incomplete.State)
	assert.Len(t, incomplete.IncompleteItems, 3)

	for _, id := range []string{"understand-requirements", "identify-ambiguities", "confirm-understanding"} {
		require.NoError(t, r.MarkComplete(w, constants.StateUnderstanding, nil, id, "", testNow))
	}
	assert.NoError(t, r.IncompleteError(w, constants.StateUnderstanding, nil))
}

func TestDefaultReviewChecklist(t *testing.T) {
	c := DefaultReviewChecklist(testNow)

	require.Len(t, c.Items, 7)
	automated := 0
	for i := range c.Items {
		if c.Items[i].Automated() {
			automated++
		}
		assert.False(t, c.Items[i].Completed)
	}
	assert.Equal(t, 1, automated)
	assert.False(t, ReviewComplete(c))
}

type reviewRunner struct {
	exitCode int
	output   string
}

func (r reviewRunner) Run(_ context.Context, _ string) (int, string, error) {
	return r.exitCode, r.output, nil
}

func TestExecuteItem_Automated(t *testing.T) {
	c := DefaultReviewChecklist(testNow)
	item := c.FindItem("automated-validation")
	require.NotNil(t, item)

	passed, _, err := ExecuteItem(context.Background(), reviewRunner{exitCode: 1}, item, testNow)
	require.NoError(t, err)
	assert.False(t, passed)
	assert.False(t, item.Completed)

	passed, _, err = ExecuteItem(context.Background(), reviewRunner{exitCode: 0}, item, testNow)
	require.NoError(t, err)
	assert.True(t, passed)
	assert.True(t, item.Completed)
}

func TestExecuteItem_ExpectedOutput(t *testing.T) {
	item := &domain.ReviewItem{
		ID: "build",
		Action: domain.ReviewAction{
			Type:           domain.ReviewActionCommand,
			Command:        "make build",
			ExpectedOutput: []string{"ok"},
		},
	}

	passed, _, err := ExecuteItem(context.Background(), reviewRunner{exitCode: 0, output: "not quite"}, item, testNow)
	require.NoError(t, err)
	assert.False(t, passed)

	passed, _, err = ExecuteItem(context.Background(), reviewRunner{exitCode: 0, output: "all ok"}, item, testNow)
	require.NoError(t, err)
	assert.True(t, passed)
}

func TestExecuteItem_ManualItemRefused(t *testing.T) {
	c := DefaultReviewChecklist(testNow)
	item := c.FindItem("code-quality")
	require.NotNil(t, item)

	_, _, err := ExecuteItem(context.Background(), reviewRunner{}, item, testNow)
	require.ErrorIs(t, err, aferrors.ErrReviewItemManual)
}

func TestCheckItem_And_ReviewComplete(t *testing.T) {
	c := DefaultReviewChecklist(testNow)
	for i := range c.Items {
		CheckItem(&c.Items[i], "looks good", testNow)
	}
	assert.True(t, ReviewComplete(c))
	assert.True(t, ReviewComplete(nil))
}
