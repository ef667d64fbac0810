package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiflow-dev/aiflow/internal/constants"
)

func TestParseEstimatedHours(t *testing.T) {
	tests := []struct {
		name   string
		phrase string
		want   float64
	}{
		{"weeks plural", "2 weeks", 80},
		{"week singular", "1 week", 40},
		{"days plural", "3 days", 24},
		{"day singular", "1 day", 8},
		{"hours plural", "5 hours", 5},
		{"hour singular", "1 hour", 1},
		{"minutes", "90 minutes", 1.5},
		{"minute shorthand", "30m", 0.5},
		{"bare integer", "4", 4},
		{"whitespace and case", "  2 Days ", 16},
		{"unparseable", "soonish", 0},
		{"empty", "", 0},
		{"negative not matched", "-2 days", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ParseEstimatedHours(tt.phrase), 1e-9)
		})
	}
}

func TestActualHours(t *testing.T) {
	start := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)

	assert.InDelta(t, 1.5, ActualHours(start, end), 1e-9)
}

func TestQueueStore_RecomputeMetadata(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	q := NewQueueStore(now)
	q.Tasks = []*Task{
		{ID: "task-1", Status: constants.TaskStatusActive},
		{ID: "task-2", Status: constants.TaskStatusQueued},
		{ID: "task-3", Status: constants.TaskStatusQueued},
		{ID: "task-4", Status: constants.TaskStatusDone},
		{ID: "task-5", Status: constants.TaskStatusArchived},
	}

	q.RecomputeMetadata(now)

	assert.Equal(t, 5, q.Metadata.TotalTasks)
	assert.Equal(t, 2, q.Metadata.QueuedCount)
	assert.Equal(t, 1, q.Metadata.ActiveCount)
	assert.Equal(t, 1, q.Metadata.CompletedCount)
	assert.Equal(t, 1, q.Metadata.ArchivedCount)
	assert.Equal(t, now, q.Metadata.LastUpdated)
}

func TestQueueStore_ActiveTask(t *testing.T) {
	q := NewQueueStore(time.Now())
	assert.Nil(t, q.ActiveTask())

	q.Tasks = []*Task{{ID: "task-1", Status: constants.TaskStatusActive}}
	q.SetActiveTaskID("task-1")

	active := q.ActiveTask()
	require.NotNil(t, active)
	assert.Equal(t, "task-1", active.ID)

	q.SetActiveTaskID("")
	assert.Nil(t, q.ActiveTaskID)
	assert.Nil(t, q.ActiveTask())
}

func TestItemCondition_Matches(t *testing.T) {
	tests := []struct {
		name  string
		cond  *ItemCondition
		state constants.WorkflowState
		tags  []string
		want  bool
	}{
		{"nil condition always matches", nil, constants.StateDesigning, nil, true},
		{
			"state match",
			&ItemCondition{States: []constants.WorkflowState{constants.StateTesting}},
			constants.StateTesting, nil, true,
		},
		{
			"state mismatch",
			&ItemCondition{States: []constants.WorkflowState{constants.StateTesting}},
			constants.StateDesigning, nil, false,
		},
		{
			"tag match",
			&ItemCondition{AnyTag: []string{"backend", "api"}},
			constants.StateDesigning, []string{"api"}, true,
		},
		{
			"tag mismatch",
			&ItemCondition{AnyTag: []string{"backend"}},
			constants.StateDesigning, []string{"frontend"}, false,
		},
		{
			"state and tag both required",
			&ItemCondition{States: []constants.WorkflowState{constants.StateTesting}, AnyTag: []string{"backend"}},
			constants.StateTesting, []string{"frontend"}, false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cond.Matches(tt.state, tt.tags))
		})
	}
}

func TestChecklistItem_AppliesTo(t *testing.T) {
	item := &ChecklistItem{
		ID:               "write-tests",
		ApplicableStates: []constants.WorkflowState{constants.StateTesting},
	}

	assert.True(t, item.AppliesTo(constants.StateTesting, nil))
	assert.False(t, item.AppliesTo(constants.StateDesigning, nil))
}

func TestPattern_Relevance(t *testing.T) {
	p := &Pattern{
		ID:               "error-wrapping",
		ApplicableStates: []constants.WorkflowState{constants.StateImplementing},
		RequiredStates:   []constants.WorkflowState{constants.StateReviewing},
	}

	assert.True(t, p.RelevantIn(constants.StateImplementing))
	assert.True(t, p.RelevantIn(constants.StateReviewing))
	assert.False(t, p.RelevantIn(constants.StateDesigning))

	assert.True(t, p.MandatoryIn(constants.StateReviewing))
	assert.False(t, p.MandatoryIn(constants.StateImplementing))
}

func TestPattern_EffectiveSeverity(t *testing.T) {
	tests := []struct {
		name string
		p    Pattern
		want constants.Severity
	}{
		{
			"declared severity wins",
			Pattern{Validation: PatternValidation{Type: constants.ValidationCommandRun, Severity: constants.SeverityError}},
			constants.SeverityError,
		},
		{
			"file_exists defaults to error",
			Pattern{Validation: PatternValidation{Type: constants.ValidationFileExists}},
			constants.SeverityError,
		},
		{
			"code_check defaults to warning",
			Pattern{Validation: PatternValidation{Type: constants.ValidationCodeCheck}},
			constants.SeverityWarning,
		},
		{
			"custom defaults to warning",
			Pattern{Validation: PatternValidation{Type: constants.ValidationCustom}},
			constants.SeverityWarning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.EffectiveSeverity())
			assert.Equal(t, tt.want == constants.SeverityError, tt.p.Blocking())
		})
	}
}

func TestLegacyFromTask_RoundTrip(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	task := &Task{
		ID:           "task-1766829600000",
		Goal:         "Implement user authentication",
		Status:       constants.TaskStatusActive,
		Priority:     constants.PriorityMedium,
		CreatedAt:    now,
		ActivatedAt:  &now,
		Requirements: []string{"REQ-1"},
		Workflow:     NewWorkflow(now),
	}

	legacy := LegacyFromTask(task)
	assert.Equal(t, task.ID, legacy.TaskID)
	assert.Equal(t, task.Goal, legacy.OriginalGoal)
	assert.Equal(t, constants.LegacyStatusInProgress, legacy.Status)
	assert.Equal(t, task.CreatedAt, legacy.StartedAt)
	require.NotNil(t, legacy.Workflow)
	assert.Equal(t, constants.StateUnderstanding, legacy.Workflow.CurrentState)

	back := TaskFromLegacy(legacy)
	assert.Equal(t, task.ID, back.ID)
	assert.Equal(t, task.Goal, back.Goal)
	assert.Equal(t, constants.TaskStatusActive, back.Status)
	assert.Equal(t, []string{"REQ-1"}, back.Requirements)
}

func TestLegacyFromTask_CompletedStatus(t *testing.T) {
	now := time.Now().UTC()
	task := &Task{
		ID:          "task-1766829600000",
		Goal:        "Ship the release notes page",
		Status:      constants.TaskStatusDone,
		CreatedAt:   now,
		CompletedAt: &now,
	}

	legacy := LegacyFromTask(task)
	assert.Equal(t, constants.LegacyStatusCompleted, legacy.Status)
	require.NotNil(t, legacy.CompletedAt)

	back := TaskFromLegacy(legacy)
	assert.Equal(t, constants.TaskStatusDone, back.Status)
	assert.Nil(t, back.ActivatedAt)
}

func TestWorkflow_Clone_Isolation(t *testing.T) {
	now := time.Now().UTC()
	w := NewWorkflow(now)
	w.StateHistory = append(w.StateHistory, StateHistoryEntry{State: constants.StateUnderstanding, EnteredAt: now})
	w.Checklists = map[string]map[string]ItemCompletion{
		"UNDERSTANDING": {"understand-requirements": {Completed: true}},
	}

	clone := w.Clone()
	clone.StateHistory[0].State = constants.StateDesigning
	clone.Checklists["UNDERSTANDING"]["understand-requirements"] = ItemCompletion{Completed: false}

	assert.Equal(t, constants.StateUnderstanding, w.StateHistory[0].State)
	assert.True(t, w.Checklists["UNDERSTANDING"]["understand-requirements"].Completed)
}
