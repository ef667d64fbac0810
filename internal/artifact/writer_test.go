package artifact

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiflow-dev/aiflow/internal/constants"
	"github.com/aiflow-dev/aiflow/internal/domain"
)

func testTask(current constants.WorkflowState) *domain.Task {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	w := domain.NewWorkflow(now)
	w.CurrentState = current
	return &domain.Task{
		ID:        "task-1756036800000",
		Goal:      "render the derived artefacts",
		Status:    constants.TaskStatusActive,
		Priority:  constants.PriorityMedium,
		CreatedAt: now,
		Workflow:  w,
	}
}

func TestWriteAll(t *testing.T) {
	w := NewWriter(t.TempDir(), zerolog.Nop())
	task := testTask(constants.StateImplementing)
	lines := []ChecklistLine{
		{ID: "write-code", Title: "Write the code", Required: true, Completed: true},
		{ID: "add-requirement-tags", Title: "Tag code with requirement IDs", Required: true},
	}

	require.NoError(t, w.WriteAll(context.Background(), task, lines, nil))

	status, err := os.ReadFile(w.StatusPath())
	require.NoError(t, err)
	assert.Equal(t, "IMPLEMENTING (40%) | task-1756036800000 | render the derived artefacts\n", string(status))

	steps, err := os.ReadFile(w.NextStepsPath())
	require.NoError(t, err)
	assert.Contains(t, string(steps), "- [x] Write the code (required)")
	assert.Contains(t, string(steps), "- [ ] Tag code with requirement IDs (required)")
	assert.Contains(t, string(steps), "**TESTING**")

	rule, err := os.ReadFile(w.CursorRulePath())
	require.NoError(t, err)
	assert.Contains(t, string(rule), "alwaysApply: true")
	assert.Contains(t, string(rule), "# Current Workflow State: IMPLEMENTING")
	assert.Contains(t, string(rule), "aiflow sync --state TESTING")

	assert.NoFileExists(t, w.WarningsPath())
}

func TestWriteAll_Warnings(t *testing.T) {
	w := NewWriter(t.TempDir(), zerolog.Nop())
	task := testTask(constants.StateReviewing)

	require.NoError(t, w.WriteAll(context.Background(), task, nil, []string{"lint reported 2 problems"}))

	warnings, err := os.ReadFile(w.WarningsPath())
	require.NoError(t, err)
	assert.Contains(t, string(warnings), "- lint reported 2 problems")

	// A clean follow-up write removes the digest again.
	require.NoError(t, w.WriteAll(context.Background(), task, nil, nil))
	assert.NoFileExists(t, w.WarningsPath())
}

func TestWriteWarnings_Standalone(t *testing.T) {
	w := NewWriter(t.TempDir(), zerolog.Nop())

	require.NoError(t, w.WriteWarnings([]string{"pattern naming-convention: check failed"}))
	warnings, err := os.ReadFile(w.WarningsPath())
	require.NoError(t, err)
	assert.Contains(t, string(warnings), "- pattern naming-convention: check failed")

	// An empty follow-up removes the digest without touching the other
	// artefacts.
	require.NoError(t, w.WriteWarnings(nil))
	assert.NoFileExists(t, w.WarningsPath())
	require.NoError(t, w.WriteWarnings(nil))
}

func TestWriteAll_TerminalState(t *testing.T) {
	w := NewWriter(t.TempDir(), zerolog.Nop())
	task := testTask(constants.StateReadyToCommit)

	require.NoError(t, w.WriteAll(context.Background(), task, nil, nil))

	status, err := os.ReadFile(w.StatusPath())
	require.NoError(t, err)
	assert.Contains(t, string(status), "READY_TO_COMMIT (100%)")

	rule, err := os.ReadFile(w.CursorRulePath())
	require.NoError(t, err)
	assert.Contains(t, string(rule), "aiflow task complete")
}

func TestRemoveDerived(t *testing.T) {
	w := NewWriter(t.TempDir(), zerolog.Nop())
	task := testTask(constants.StateUnderstanding)
	require.NoError(t, w.WriteAll(context.Background(), task, nil, []string{"warning"}))

	require.NoError(t, w.RemoveDerived())
	assert.NoFileExists(t, w.StatusPath())
	assert.NoFileExists(t, w.NextStepsPath())
	assert.NoFileExists(t, w.WarningsPath())
	assert.NoFileExists(t, w.CursorRulePath())

	// Removing twice is fine.
	require.NoError(t, w.RemoveDerived())
}
