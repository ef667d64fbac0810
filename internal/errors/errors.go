// Package errors provides centralized error handling for aiflow.
//
// This package defines sentinel errors used for programmatic error categorization
// throughout the application, plus structured error types that carry payloads the
// CLI layer renders. All error types can be checked using errors.Is() / errors.As().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Sentinel errors for error categorization.
// These allow callers to check error types with errors.Is().
// All errors use lowercase descriptions per Go conventions.
var (
	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrGoalLength indicates a task goal outside the accepted length range.
	ErrGoalLength = errors.New("goal must be between 10 and 500 characters")

	// ErrInvalidPriority indicates an unknown priority value.
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrUnknownState indicates a string that is not a known workflow state.
	ErrUnknownState = errors.New("unknown workflow state")

	// ErrTaskNotFound indicates that a specific task was not found in the queue.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskNotActive indicates an operation that requires the task to be
	// the current active task.
	ErrTaskNotActive = errors.New("task is not active")

	// ErrNoActiveTask indicates that no task is currently active.
	ErrNoActiveTask = errors.New("no active task")

	// ErrNotReadyToCommit indicates a completion attempted before the task
	// reached READY_TO_COMMIT.
	ErrNotReadyToCommit = errors.New("task is not in READY_TO_COMMIT state")

	// ErrInvalidTransition indicates an attempt to make an invalid state transition.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrChecklistIncomplete indicates a transition blocked by required
	// checklist items that are not complete.
	ErrChecklistIncomplete = errors.New("state checklist incomplete")

	// ErrHistoryCorruption indicates a corrupted workflow state history.
	// Never auto-repaired; the user is instructed to inspect the file.
	ErrHistoryCorruption = errors.New("workflow history corruption")

	// ErrLockTimeout indicates a file lock could not be acquired within the timeout period.
	ErrLockTimeout = errors.New("lock acquisition timeout")

	// ErrLockHeld indicates a re-entrant acquisition by the same holder.
	// Callers must not nest lock acquisitions.
	ErrLockHeld = errors.New("lock already held by this handle")

	// ErrBackupNotFound indicates no backup exists to roll back from.
	ErrBackupNotFound = errors.New("no backup found")

	// ErrChecklistItemNotFound indicates an unknown checklist item id.
	ErrChecklistItemNotFound = errors.New("checklist item not found")

	// ErrPatternNotFound indicates an unknown pattern id.
	ErrPatternNotFound = errors.New("pattern not found")

	// ErrCacheStale indicates cached validation results are too old or belong
	// to a different task.
	ErrCacheStale = errors.New("cached validation results are stale")

	// ErrInvalidOutputFormat indicates an invalid output format was specified.
	ErrInvalidOutputFormat = errors.New("invalid output format")

	// ErrConflictingFlags indicates that mutually exclusive flags were specified.
	ErrConflictingFlags = errors.New("conflicting flags specified")

	// ErrInvalidArgument indicates that an invalid argument was provided.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrQueueCorrupted indicates the queue store file could not be parsed.
	ErrQueueCorrupted = errors.New("queue store corrupted")

	// ErrLegacyFileCorrupted indicates the legacy task file could not be parsed.
	ErrLegacyFileCorrupted = errors.New("legacy task file corrupted")

	// ErrCommandFailed indicates that a verification command execution failed.
	ErrCommandFailed = errors.New("command failed")

	// ErrReviewItemManual indicates an attempt to auto-execute a manual review item.
	ErrReviewItemManual = errors.New("review item requires manual completion")
)
