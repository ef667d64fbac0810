package domain

import (
	"time"

	"github.com/aiflow-dev/aiflow/internal/constants"
)

// QueueStore is the root persisted object of the authoritative queue file.
//
// Example JSON representation:
//
//	{
//	    "tasks": [...],
//	    "activeTaskId": "task-1766829600000",
//	    "metadata": {
//	        "totalTasks": 3,
//	        "queuedCount": 2,
//	        "activeCount": 1,
//	        "completedCount": 0,
//	        "archivedCount": 0,
//	        "lastUpdated": "2026-08-24T10:00:00Z"
//	    }
//	}
type QueueStore struct {
	// Tasks holds every task known to the store, including DONE and ARCHIVED.
	Tasks []*Task `json:"tasks"`

	// ActiveTaskID is the id of the single ACTIVE task, or null.
	ActiveTaskID *string `json:"activeTaskId"`

	// Metadata is derived from Tasks and recomputed after every mutation.
	Metadata QueueMetadata `json:"metadata"`
}

// QueueMetadata holds derived counts over the task list.
type QueueMetadata struct {
	// TotalTasks is the number of tasks in the store.
	TotalTasks int `json:"totalTasks"`

	// QueuedCount is the number of QUEUED tasks.
	QueuedCount int `json:"queuedCount"`

	// ActiveCount is the number of ACTIVE tasks (0 or 1 by invariant).
	ActiveCount int `json:"activeCount"`

	// CompletedCount is the number of DONE tasks.
	CompletedCount int `json:"completedCount"`

	// ArchivedCount is the number of ARCHIVED tasks.
	ArchivedCount int `json:"archivedCount"`

	// LastUpdated is when the store was last mutated.
	LastUpdated time.Time `json:"lastUpdated"`
}

// NewQueueStore creates an empty queue store.
func NewQueueStore(now time.Time) *QueueStore {
	return &QueueStore{
		Tasks:        []*Task{},
		ActiveTaskID: nil,
		Metadata:     QueueMetadata{LastUpdated: now},
	}
}

// FindTask returns the task with the given id, or nil.
func (q *QueueStore) FindTask(id string) *Task {
	for _, t := range q.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// ActiveTask returns the task referenced by ActiveTaskID, or nil.
// It does not scan for stray ACTIVE statuses; the store invariant guarantees
// ActiveTaskID and the ACTIVE status agree after every mutation.
func (q *QueueStore) ActiveTask() *Task {
	if q.ActiveTaskID == nil {
		return nil
	}
	return q.FindTask(*q.ActiveTaskID)
}

// SetActiveTaskID points ActiveTaskID at the given id. An empty id clears it.
func (q *QueueStore) SetActiveTaskID(id string) {
	if id == "" {
		q.ActiveTaskID = nil
		return
	}
	q.ActiveTaskID = &id
}

// RecomputeMetadata rebuilds the derived counts from Tasks and stamps
// LastUpdated. Must be called after every mutation, before persisting.
func (q *QueueStore) RecomputeMetadata(now time.Time) {
	meta := QueueMetadata{
		TotalTasks:  len(q.Tasks),
		LastUpdated: now,
	}
	for _, t := range q.Tasks {
		switch t.Status {
		case constants.TaskStatusQueued:
			meta.QueuedCount++
		case constants.TaskStatusActive:
			meta.ActiveCount++
		case constants.TaskStatusDone:
			meta.CompletedCount++
		case constants.TaskStatusArchived:
			meta.ArchivedCount++
		}
	}
	q.Metadata = meta
}
