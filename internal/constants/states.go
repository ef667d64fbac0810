package constants

import "strings"

// WorkflowState represents one of the six fixed phases of the development
// lifecycle. The canonical string form is uppercase.
type WorkflowState string

// Workflow state constants in lifecycle order. The ordering in StateSequence
// is the only authoritative ordering; never compare states lexically.
const (
	// StateUnderstanding is the initial phase: clarify requirements before work starts.
	StateUnderstanding WorkflowState = "UNDERSTANDING"

	// StateDesigning covers design documentation and approval.
	StateDesigning WorkflowState = "DESIGNING"

	// StateImplementing covers writing the actual code.
	StateImplementing WorkflowState = "IMPLEMENTING"

	// StateTesting covers test planning, writing, and execution.
	StateTesting WorkflowState = "TESTING"

	// StateReviewing covers validation and the dedicated review checklist.
	StateReviewing WorkflowState = "REVIEWING"

	// StateReadyToCommit is the terminal workflow state; completion is only
	// admitted from here.
	StateReadyToCommit WorkflowState = "READY_TO_COMMIT"
)

// StateSequence is the authoritative ordered list of workflow states.
//
//nolint:gochecknoglobals // Read-only lookup table
var StateSequence = []WorkflowState{
	StateUnderstanding,
	StateDesigning,
	StateImplementing,
	StateTesting,
	StateReviewing,
	StateReadyToCommit,
}

// String returns the string representation of the WorkflowState.
// This implements fmt.Stringer for convenient logging and debugging.
func (s WorkflowState) String() string {
	return string(s)
}

// NormalizeState trims whitespace and uppercases the input, returning the
// canonical form. The result is not guaranteed to be a known state; use
// state.Index to check membership.
func NormalizeState(raw string) WorkflowState {
	return WorkflowState(strings.ToUpper(strings.TrimSpace(raw)))
}

// TaskStatus represents the queue-level state of a task.
type TaskStatus string

// Task status constants. At most one task may be Active at any instant.
const (
	// TaskStatusQueued indicates a task is waiting to be activated.
	TaskStatusQueued TaskStatus = "QUEUED"

	// TaskStatusActive indicates the task currently being worked on.
	TaskStatusActive TaskStatus = "ACTIVE"

	// TaskStatusDone indicates the task was completed from READY_TO_COMMIT.
	TaskStatusDone TaskStatus = "DONE"

	// TaskStatusArchived indicates a completed task past the retention horizon.
	// Archival is terminal.
	TaskStatusArchived TaskStatus = "ARCHIVED"
)

// String returns the string representation of the TaskStatus.
func (s TaskStatus) String() string {
	return string(s)
}

// Priority represents the scheduling priority of a task.
type Priority string

// Priority constants ordered from most to least urgent.
const (
	// PriorityCritical is the highest priority.
	PriorityCritical Priority = "CRITICAL"

	// PriorityHigh is above the default.
	PriorityHigh Priority = "HIGH"

	// PriorityMedium is the default priority.
	PriorityMedium Priority = "MEDIUM"

	// PriorityLow is the lowest priority.
	PriorityLow Priority = "LOW"
)

// priorityRank maps priorities to their scheduling rank (lower wins).
//
//nolint:gochecknoglobals // Read-only lookup table
var priorityRank = map[Priority]int{
	PriorityCritical: 0,
	PriorityHigh:     1,
	PriorityMedium:   2,
	PriorityLow:      3,
}

// Rank returns the scheduling rank of the priority (lower is more urgent).
// Unknown priorities rank after Low.
func (p Priority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return len(priorityRank)
}

// IsValidPriority reports whether p is one of the known priority values.
func IsValidPriority(p Priority) bool {
	_, ok := priorityRank[p]
	return ok
}

// String returns the string representation of the Priority.
func (p Priority) String() string {
	return string(p)
}

// LegacyStatus values used by the legacy single-task file. These are
// lowercase by contract; external agents parse them.
const (
	// LegacyStatusInProgress marks the active task in the legacy file.
	LegacyStatusInProgress = "in_progress"

	// LegacyStatusCompleted marks a completed task retained for history.
	LegacyStatusCompleted = "completed"
)

// ValidationType classifies how a pattern is verified.
type ValidationType string

// Validation type constants.
const (
	// ValidationFileExists checks that a file matching the rule exists.
	ValidationFileExists ValidationType = "file_exists"

	// ValidationCommandRun runs a command and checks its exit status.
	ValidationCommandRun ValidationType = "command_run"

	// ValidationCodeCheck performs a textual check against the rule.
	ValidationCodeCheck ValidationType = "code_check"

	// ValidationCustom requires a manual, response-level check.
	ValidationCustom ValidationType = "custom"
)

// Severity classifies the impact of a pattern violation.
type Severity string

// Severity constants. Only error-severity violations block validation.
const (
	// SeverityError blocks the aggregate validation result.
	SeverityError Severity = "error"

	// SeverityWarning is surfaced but never blocks.
	SeverityWarning Severity = "warning"

	// SeverityInfo is informational only.
	SeverityInfo Severity = "info"
)

// ChecklistPriority classifies checklist item importance for rendering.
type ChecklistPriority string

// Checklist priority constants (lowercase by contract in persisted JSON).
const (
	// ChecklistPriorityHigh marks items that should be addressed first.
	ChecklistPriorityHigh ChecklistPriority = "high"

	// ChecklistPriorityMedium is the default item priority.
	ChecklistPriorityMedium ChecklistPriority = "medium"

	// ChecklistPriorityLow marks optional or cleanup items.
	ChecklistPriorityLow ChecklistPriority = "low"
)
