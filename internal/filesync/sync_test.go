package filesync

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiflow-dev/aiflow/internal/clock"
	"github.com/aiflow-dev/aiflow/internal/constants"
	"github.com/aiflow-dev/aiflow/internal/domain"
	aferrors "github.com/aiflow-dev/aiflow/internal/errors"
)

func newTestSyncer(t *testing.T) (*Syncer, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock(time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC))
	return NewSyncer(t.TempDir(), clk, zerolog.Nop()), clk
}

func activeTask(clk clock.Clock) *domain.Task {
	now := clk.Now().UTC()
	return &domain.Task{
		ID:           "task-1756036800000",
		Goal:         "keep the derived file in sync",
		Status:       constants.TaskStatusActive,
		Priority:     constants.PriorityMedium,
		CreatedAt:    now,
		ActivatedAt:  &now,
		Requirements: []string{"REQ-1"},
		Workflow:     domain.NewWorkflow(now),
	}
}

func readLegacy(t *testing.T, s *Syncer) domain.LegacyTask {
	t.Helper()
	data, err := os.ReadFile(s.LegacyPath())
	require.NoError(t, err)
	var l domain.LegacyTask
	require.NoError(t, json.Unmarshal(data, &l))
	return l
}

func TestSyncTask_WritesDerivedView(t *testing.T) {
	s, clk := newTestSyncer(t)
	task := activeTask(clk)

	require.NoError(t, s.SyncTask(context.Background(), task, Options{}))

	l := readLegacy(t, s)
	assert.Equal(t, task.ID, l.TaskID)
	assert.Equal(t, task.Goal, l.OriginalGoal)
	assert.Equal(t, constants.LegacyStatusInProgress, l.Status)
	assert.Equal(t, []string{"REQ-1"}, l.Requirements)
	require.NotNil(t, l.Workflow)
	assert.Equal(t, constants.StateUnderstanding, l.Workflow.CurrentState)
}

func TestSyncTask_CompletedStatusLowercase(t *testing.T) {
	s, clk := newTestSyncer(t)
	task := activeTask(clk)
	now := clk.Now().UTC()
	task.Status = constants.TaskStatusDone
	task.CompletedAt = &now

	require.NoError(t, s.SyncTask(context.Background(), task, Options{}))

	l := readLegacy(t, s)
	assert.Equal(t, constants.LegacyStatusCompleted, l.Status)
	require.NotNil(t, l.CompletedAt)
}

func TestSyncTask_Idempotent(t *testing.T) {
	s, clk := newTestSyncer(t)
	task := activeTask(clk)
	ctx := context.Background()

	require.NoError(t, s.SyncTask(ctx, task, Options{}))
	first, err := os.ReadFile(s.LegacyPath())
	require.NoError(t, err)

	require.NoError(t, s.SyncTask(ctx, task, Options{}))
	second, err := os.ReadFile(s.LegacyPath())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSyncTask_PreservesRequestedFields(t *testing.T) {
	s, clk := newTestSyncer(t)
	task := activeTask(clk)
	ctx := context.Background()

	require.NoError(t, s.SyncTask(ctx, task, Options{}))

	// Simulate an external agent annotating the file.
	doc, err := s.readRaw()
	require.NoError(t, err)
	doc["notes"] = "added by hand"
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.LegacyPath(), data, 0o600))

	require.NoError(t, s.SyncTask(ctx, task, Options{PreserveFields: []string{"notes"}}))

	doc, err = s.readRaw()
	require.NoError(t, err)
	assert.Equal(t, "added by hand", doc["notes"])
}

func TestSyncTask_RequirementsAlwaysFromQueue(t *testing.T) {
	s, clk := newTestSyncer(t)
	task := activeTask(clk)
	ctx := context.Background()

	require.NoError(t, s.SyncTask(ctx, task, Options{}))

	doc, err := s.readRaw()
	require.NoError(t, err)
	doc["requirements"] = []string{"REQ-TAMPERED"}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.LegacyPath(), data, 0o600))

	require.NoError(t, s.SyncTask(ctx, task, Options{PreserveFields: []string{"requirements"}}))

	l := readLegacy(t, s)
	assert.Equal(t, []string{"REQ-1"}, l.Requirements)
}

func TestSyncTask_BackupAndPrune(t *testing.T) {
	s, clk := newTestSyncer(t)
	task := activeTask(clk)
	ctx := context.Background()

	require.NoError(t, s.SyncTask(ctx, task, Options{}))
	for i := 0; i < constants.MaxBackups+3; i++ {
		clk.Advance(time.Second)
		require.NoError(t, s.SyncTask(ctx, task, Options{Backup: true}))
	}

	names, err := s.backupNames()
	require.NoError(t, err)
	assert.Len(t, names, constants.MaxBackups)
}

func TestDetectManualEdit(t *testing.T) {
	s, clk := newTestSyncer(t)
	task := activeTask(clk)
	ctx := context.Background()

	edited, err := s.DetectManualEdit(ctx, task)
	require.NoError(t, err)
	assert.False(t, edited, "missing file is not an edit")

	require.NoError(t, s.SyncTask(ctx, task, Options{}))
	edited, err = s.DetectManualEdit(ctx, task)
	require.NoError(t, err)
	assert.False(t, edited)

	// Change the workflow state on disk only.
	l := readLegacy(t, s)
	l.Workflow.CurrentState = constants.StateDesigning
	data, err := json.Marshal(l)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.LegacyPath(), data, 0o600))

	edited, err = s.DetectManualEdit(ctx, task)
	require.NoError(t, err)
	assert.True(t, edited)
}

func TestDetectManualEdit_UnparsableFileIsNotAnEdit(t *testing.T) {
	s, clk := newTestSyncer(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.LegacyPath()), 0o750))
	require.NoError(t, os.WriteFile(s.LegacyPath(), []byte("{bad"), 0o600))

	edited, err := s.DetectManualEdit(context.Background(), activeTask(clk))
	require.NoError(t, err)
	assert.False(t, edited)
}

func TestRollback_RestoresNewestBackup(t *testing.T) {
	s, clk := newTestSyncer(t)
	task := activeTask(clk)
	ctx := context.Background()

	require.NoError(t, s.SyncTask(ctx, task, Options{}))
	clk.Advance(time.Second)
	require.NoError(t, s.SyncTask(ctx, task, Options{Backup: true}))

	require.NoError(t, os.WriteFile(s.LegacyPath(), []byte("{bad"), 0o600))
	require.NoError(t, s.Rollback())

	l := readLegacy(t, s)
	assert.Equal(t, task.ID, l.TaskID)
}

func TestRollback_NoBackup(t *testing.T) {
	s, _ := newTestSyncer(t)
	require.ErrorIs(t, s.Rollback(), aferrors.ErrBackupNotFound)
}

func TestRemove_AbsentFileIsFine(t *testing.T) {
	s, _ := newTestSyncer(t)
	require.NoError(t, s.Remove())
}
