package validate

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiflow-dev/aiflow/internal/clock"
	"github.com/aiflow-dev/aiflow/internal/constants"
	"github.com/aiflow-dev/aiflow/internal/domain"
	aferrors "github.com/aiflow-dev/aiflow/internal/errors"
	"github.com/aiflow-dev/aiflow/internal/pattern"
)

var testNow = time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

func TestValidateTransition(t *testing.T) {
	require.NoError(t, ValidateTransition(constants.StateUnderstanding, constants.StateDesigning))

	err := ValidateTransition(constants.StateUnderstanding, constants.StateTesting)
	require.ErrorIs(t, err, aferrors.ErrInvalidTransition)

	var invalid *aferrors.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, string(constants.StateDesigning), invalid.ValidNext)

	err = ValidateTransition(constants.StateDesigning, constants.StateUnderstanding)
	require.ErrorIs(t, err, aferrors.ErrInvalidTransition)

	err = ValidateTransition(constants.StateReadyToCommit, constants.StateUnderstanding)
	require.ErrorIs(t, err, aferrors.ErrInvalidTransition)
	require.ErrorAs(t, err, &invalid)
	assert.Empty(t, invalid.ValidNext)
}

func workflowAt(current constants.WorkflowState, history ...constants.WorkflowState) *domain.Workflow {
	w := domain.NewWorkflow(testNow)
	w.CurrentState = current
	for i, s := range history {
		w.StateHistory = append(w.StateHistory, domain.StateHistoryEntry{
			State:     s,
			EnteredAt: testNow.Add(time.Duration(i) * time.Minute),
		})
	}
	w.StateEnteredAt = testNow.Add(time.Duration(len(history)) * time.Minute)
	return w
}

func TestValidateHistory(t *testing.T) {
	tests := []struct {
		name    string
		w       *domain.Workflow
		wantErr string
	}{
		{
			name: "fresh workflow",
			w:    workflowAt(constants.StateUnderstanding),
		},
		{
			name: "normal progression",
			w:    workflowAt(constants.StateImplementing, constants.StateUnderstanding, constants.StateDesigning),
		},
		{
			name:    "regression behind history",
			w:       workflowAt(constants.StateUnderstanding, constants.StateUnderstanding, constants.StateDesigning),
			wantErr: "regressed",
		},
		{
			name:    "skipped ahead of history",
			w:       workflowAt(constants.StateTesting, constants.StateUnderstanding),
			wantErr: "skipped",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHistory("task-1", tt.w)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, aferrors.ErrHistoryCorruption)
			var corruption *aferrors.HistoryCorruptionError
			require.ErrorAs(t, err, &corruption)
			assert.Contains(t, corruption.Reason, tt.wantErr)
		})
	}
}

func consistentPair() (*domain.Task, *domain.LegacyTask) {
	task := &domain.Task{
		ID:        "task-1",
		Goal:      "a goal long enough to be valid",
		Status:    constants.TaskStatusActive,
		Priority:  constants.PriorityMedium,
		CreatedAt: testNow,
		Workflow:  domain.NewWorkflow(testNow),
	}
	return task, domain.LegacyFromTask(task)
}

func TestCheckConsistency(t *testing.T) {
	task, legacy := consistentPair()
	assert.Empty(t, CheckConsistency(task, legacy))

	missing := CheckConsistency(task, nil)
	require.Len(t, missing, 1)
	assert.Equal(t, SourceFile, missing[0].Source)
	assert.Equal(t, constants.SeverityWarning, missing[0].Severity)

	legacy.Workflow.CurrentState = constants.StateDesigning
	diverged := CheckConsistency(task, legacy)
	require.Len(t, diverged, 1)
	assert.Equal(t, SourceBoth, diverged[0].Source)
	assert.Equal(t, constants.SeverityError, diverged[0].Severity)
	assert.Contains(t, diverged[0].Message, "workflow state mismatch")
}

func TestCheckConsistency_GoalMismatch(t *testing.T) {
	task, legacy := consistentPair()
	legacy.OriginalGoal = "a different goal someone typed in"

	findings := CheckConsistency(task, legacy)
	require.Len(t, findings, 1)
	assert.Equal(t, SourceBoth, findings[0].Source)
	assert.Equal(t, constants.SeverityError, findings[0].Severity)
	assert.Contains(t, findings[0].Message, "goal mismatch")
}

func TestValidateTask_Overall(t *testing.T) {
	task, legacy := consistentPair()
	v := NewValidator(nil, clock.NewMock(testNow))

	report, err := v.ValidateTask(context.Background(), task, legacy, nil)
	require.NoError(t, err)
	assert.True(t, report.Overall)
	assert.Empty(t, report.Findings)

	legacy.Status = "completed"
	report, err = v.ValidateTask(context.Background(), task, legacy, nil)
	require.NoError(t, err)
	assert.False(t, report.Overall)
}

func TestValidateTask_MissingFileIsNonBlocking(t *testing.T) {
	task, _ := consistentPair()
	v := NewValidator(nil, clock.NewMock(testNow))

	report, err := v.ValidateTask(context.Background(), task, nil, nil)
	require.NoError(t, err)
	assert.True(t, report.Overall, "a missing derived file only warns")
	require.Len(t, report.Findings, 1)
}

func TestValidateTask_BlockingPatternFailure(t *testing.T) {
	task, legacy := consistentPair()
	verifier := pattern.NewVerifier(t.TempDir(), nil, clock.NewMock(testNow))
	v := NewValidator(verifier, clock.NewMock(testNow))

	patterns := []domain.Pattern{{
		ID:               "needs-readme",
		ApplicableStates: []constants.WorkflowState{constants.StateUnderstanding},
		Validation:       domain.PatternValidation{Type: constants.ValidationFileExists, Rule: "README.md"},
	}}

	report, err := v.ValidateTask(context.Background(), task, legacy, patterns)
	require.NoError(t, err)
	assert.False(t, report.Overall)
	require.Len(t, report.Patterns, 1)
	assert.True(t, report.Patterns[0].Blocking)
}

func TestCache_FreshAndStale(t *testing.T) {
	clk := clock.NewMock(testNow)
	c := NewCache(t.TempDir(), clk)
	ctx := context.Background()

	_, err := c.Fresh(ctx, "task-1")
	require.ErrorIs(t, err, aferrors.ErrCacheStale)

	require.NoError(t, c.Save(ctx, &CachedResult{TaskID: "task-1", Overall: true}))

	cached, err := c.Fresh(ctx, "task-1")
	require.NoError(t, err)
	assert.True(t, cached.Overall)

	_, err = c.Fresh(ctx, "task-2")
	require.ErrorIs(t, err, aferrors.ErrCacheStale, "different task invalidates the cache")

	clk.Advance(constants.ValidationCacheTTL + time.Minute)
	_, err = c.Fresh(ctx, "task-1")
	require.ErrorIs(t, err, aferrors.ErrCacheStale)
}

func TestCache_UnparsableFileTreatedAsAbsent(t *testing.T) {
	c := NewCache(t.TempDir(), clock.NewMock(testNow))
	require.NoError(t, c.Save(context.Background(), &CachedResult{TaskID: "task-1"}))

	// Corrupt the file in place.
	require.NoError(t, os.WriteFile(c.Path(), []byte("{bad"), 0o600))

	cached, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestCache_MarkCursorVerified(t *testing.T) {
	c := NewCache(t.TempDir(), clock.NewMock(testNow))
	ctx := context.Background()

	require.NoError(t, c.MarkCursorVerified(ctx, "task-1", "000-current-state-enforcement", "confirmed in session"))

	cached, err := c.Fresh(ctx, "task-1")
	require.NoError(t, err)
	entry, ok := cached.CursorVerified["000-current-state-enforcement"]
	require.True(t, ok)
	assert.True(t, entry.VerifiedAt.Equal(testNow))
	assert.Equal(t, "confirmed in session", entry.Notes)

	// Switching tasks resets prior confirmations.
	require.NoError(t, c.MarkCursorVerified(ctx, "task-2", "000-current-state-enforcement", ""))
	cached, err = c.Fresh(ctx, "task-2")
	require.NoError(t, err)
	assert.Len(t, cached.CursorVerified, 1)
	assert.Empty(t, cached.CursorVerified["000-current-state-enforcement"].Notes)
}
