package constants

// Context directory layout. All paths are relative to the project root
// unless noted otherwise. JSON file names are load-bearing: external AI
// agents read them by name.
const (
	// ContextDir is the root of all engine-managed state within a project.
	ContextDir = ".ai-context"

	// QueueFileName is the authoritative queue store.
	QueueFileName = "tasks.json"

	// LegacyTaskFileName is the derived single-task view of the active task.
	LegacyTaskFileName = "current-task.json"

	// LockSuffix is appended to a file path to form its sidecar lock marker.
	LockSuffix = ".lock"

	// StatusFileName is the one-line state summary artefact.
	StatusFileName = "STATUS.txt"

	// NextStepsFileName is the markdown checklist artefact.
	NextStepsFileName = "NEXT_STEPS.md"

	// WarningsFileName is the optional warnings artefact.
	WarningsFileName = "WARNINGS.md"

	// PatternsFileName is the v2 pattern store.
	PatternsFileName = "patterns.json"

	// RulesFileName is the legacy pattern store, used only when no
	// patterns.json exists.
	RulesFileName = "rules.json"

	// BackupsDir holds rolling backups of the legacy task file.
	BackupsDir = "backups"

	// TaskHistoryDir holds per-task archive documents.
	TaskHistoryDir = "task-history"

	// ValidationCacheFileName stores cached aggregate validation results.
	ValidationCacheFileName = "validation-results.json"

	// LogsDir holds the rotating CLI log inside the context directory.
	LogsDir = "logs"

	// CLILogFileName is the rotating CLI log file name.
	CLILogFileName = "aiflow.log"
)

// Paths outside the context directory.
const (
	// ConfigRelPath is the project-relative path of the engine configuration.
	ConfigRelPath = "config/ai-workflow.config.json"

	// CursorRuleRelPath is the derived per-state enforcement descriptor.
	CursorRuleRelPath = ".cursor/rules/000-current-state-enforcement.mdc"
)
