package domain

import (
	"time"

	"github.com/aiflow-dev/aiflow/internal/constants"
)

// LegacyTask is the single-task JSON view kept for backward compatibility
// and for external AI context. It mirrors the active task's essential fields
// under the legacy key names. The queue is always authoritative; this file
// is strictly derived.
type LegacyTask struct {
	// TaskID mirrors the queue task's id.
	TaskID string `json:"taskId"`

	// OriginalGoal mirrors the queue task's goal.
	OriginalGoal string `json:"originalGoal"`

	// Status is lowercase by contract: in_progress or completed.
	Status string `json:"status"`

	// StartedAt mirrors the queue task's createdAt.
	StartedAt time.Time `json:"startedAt"`

	// CompletedAt mirrors the queue task's completedAt when set.
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// Workflow is copied whole from the queue task.
	Workflow *Workflow `json:"workflow,omitempty"`

	// Requirements is always propagated from the queue task when present.
	Requirements []string `json:"requirements,omitempty"`

	// ReviewChecklist is always propagated from the queue task when present.
	ReviewChecklist *ReviewChecklist `json:"reviewChecklist,omitempty"`
}

// LegacyFromTask synthesises the legacy view of a queue task. The caller is
// responsible for merging preserved fields from a prior file version.
func LegacyFromTask(t *Task) *LegacyTask {
	status := constants.LegacyStatusInProgress
	if t.Status == constants.TaskStatusDone || t.Status == constants.TaskStatusArchived {
		status = constants.LegacyStatusCompleted
	}
	return &LegacyTask{
		TaskID:          t.ID,
		OriginalGoal:    t.Goal,
		Status:          status,
		StartedAt:       t.CreatedAt,
		CompletedAt:     t.CompletedAt,
		Workflow:        t.Workflow.Clone(),
		Requirements:    append([]string(nil), t.Requirements...),
		ReviewChecklist: t.ReviewChecklist.Clone(),
	}
}

// TaskFromLegacy builds a queue task from a legacy file. Used by retrieval
// when the queue has no active task, and by the one-shot migration.
func TaskFromLegacy(l *LegacyTask) *Task {
	status := constants.TaskStatusActive
	if l.Status == constants.LegacyStatusCompleted {
		status = constants.TaskStatusDone
	}
	t := &Task{
		ID:              l.TaskID,
		Goal:            l.OriginalGoal,
		Status:          status,
		Priority:        constants.PriorityMedium,
		Tags:            []string{},
		CreatedAt:       l.StartedAt,
		CompletedAt:     l.CompletedAt,
		Requirements:    append([]string(nil), l.Requirements...),
		Workflow:        l.Workflow.Clone(),
		ReviewChecklist: l.ReviewChecklist.Clone(),
	}
	if status == constants.TaskStatusActive {
		started := l.StartedAt
		t.ActivatedAt = &started
	}
	return t
}
