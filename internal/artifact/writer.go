// Package artifact renders the derived, human-readable files that mirror
// the active task: the one-line status summary, the next-steps checklist,
// the editor enforcement rule, and the warnings digest. Every file here is
// derived state; the queue is authoritative and the files are regenerated
// whole on each write.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aiflow-dev/aiflow/internal/constants"
	"github.com/aiflow-dev/aiflow/internal/domain"
	"github.com/aiflow-dev/aiflow/internal/fsutil"
	"github.com/aiflow-dev/aiflow/internal/state"
)

// ChecklistLine is one rendered checklist entry.
type ChecklistLine struct {
	// ID is the checklist item id.
	ID string

	// Title is the short human-readable title.
	Title string

	// Required marks items that block state progression.
	Required bool

	// Completed marks items already done.
	Completed bool
}

// Writer renders the derived artefacts for a project.
type Writer struct {
	projectRoot string
	logger      zerolog.Logger
}

// NewWriter creates a Writer rooted at the project directory.
func NewWriter(projectRoot string, logger zerolog.Logger) *Writer {
	return &Writer{projectRoot: projectRoot, logger: logger}
}

// contextDir returns the engine context directory.
func (w *Writer) contextDir() string {
	return filepath.Join(w.projectRoot, constants.ContextDir)
}

// StatusPath returns the path of the one-line status artefact.
func (w *Writer) StatusPath() string {
	return filepath.Join(w.contextDir(), constants.StatusFileName)
}

// NextStepsPath returns the path of the next-steps artefact.
func (w *Writer) NextStepsPath() string {
	return filepath.Join(w.contextDir(), constants.NextStepsFileName)
}

// WarningsPath returns the path of the warnings artefact.
func (w *Writer) WarningsPath() string {
	return filepath.Join(w.contextDir(), constants.WarningsFileName)
}

// CursorRulePath returns the path of the editor enforcement rule.
func (w *Writer) CursorRulePath() string {
	return filepath.Join(w.projectRoot, filepath.FromSlash(constants.CursorRuleRelPath))
}

// WriteAll regenerates every artefact for the task concurrently. The files
// are independent, so one failed write does not stop the others; the first
// error is returned.
func (w *Writer) WriteAll(ctx context.Context, task *domain.Task, lines []ChecklistLine, warnings []string) error {
	// Check for cancellation at entry
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := os.MkdirAll(w.contextDir(), constants.DirPerm); err != nil {
		return fmt.Errorf("failed to create context directory: %w", err)
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		return fsutil.AtomicWrite(w.StatusPath(), []byte(renderStatus(task)))
	})
	g.Go(func() error {
		return fsutil.AtomicWrite(w.NextStepsPath(), []byte(renderNextSteps(task, lines)))
	})
	g.Go(func() error {
		if err := os.MkdirAll(filepath.Dir(w.CursorRulePath()), constants.DirPerm); err != nil {
			return fmt.Errorf("failed to create cursor rules directory: %w", err)
		}
		return fsutil.AtomicWrite(w.CursorRulePath(), []byte(renderCursorRule(task)))
	})
	g.Go(func() error {
		return w.WriteWarnings(warnings)
	})
	return g.Wait()
}

// WriteWarnings regenerates only the warnings digest, removing the file
// when there is nothing to warn about.
func (w *Writer) WriteWarnings(warnings []string) error {
	if len(warnings) == 0 {
		if err := os.Remove(w.WarningsPath()); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove warnings file: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(w.contextDir(), constants.DirPerm); err != nil {
		return fmt.Errorf("failed to create context directory: %w", err)
	}
	return fsutil.AtomicWrite(w.WarningsPath(), []byte(renderWarnings(warnings)))
}

// RemoveDerived deletes the derived artefacts, used when the queue has no
// active task left. The legacy task file is intentionally not touched; it
// stays behind as the completion record.
func (w *Writer) RemoveDerived() error {
	paths := []string{
		w.StatusPath(),
		w.NextStepsPath(),
		w.WarningsPath(),
		w.CursorRulePath(),
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", filepath.Base(p), err)
		}
	}
	return nil
}

// renderStatus produces the one-line summary.
func renderStatus(task *domain.Task) string {
	current := currentState(task)
	return fmt.Sprintf("%s (%d%%) | %s | %s\n", current, state.Progress(current), task.ID, task.Goal)
}

// renderNextSteps produces the markdown checklist artefact.
func renderNextSteps(task *domain.Task, lines []ChecklistLine) string {
	current := currentState(task)
	var b strings.Builder
	b.WriteString("# Next Steps\n\n")
	fmt.Fprintf(&b, "**Task:** %s\n\n", task.Goal)
	fmt.Fprintf(&b, "**State:** %s (%d%% complete)\n\n", current, state.Progress(current))

	if len(lines) > 0 {
		b.WriteString("## Checklist\n\n")
		for _, line := range lines {
			mark := " "
			if line.Completed {
				mark = "x"
			}
			suffix := ""
			if line.Required {
				suffix = " (required)"
			}
			fmt.Fprintf(&b, "- [%s] %s%s\n", mark, line.Title, suffix)
		}
		b.WriteString("\n")
	}

	if next, ok := state.Next(current); ok {
		fmt.Fprintf(&b, "When the required items above are complete, advance to **%s**.\n", next)
	} else {
		b.WriteString("All workflow states are complete. Complete the task to finish.\n")
	}
	return b.String()
}

// renderCursorRule produces the editor enforcement descriptor. The file is
// always attached so the editor agent sees the current state on every turn.
func renderCursorRule(task *domain.Task) string {
	current := currentState(task)
	var b strings.Builder
	b.WriteString("---\ndescription: Current workflow state enforcement\nalwaysApply: true\n---\n\n")
	fmt.Fprintf(&b, "# Current Workflow State: %s\n\n", current)
	fmt.Fprintf(&b, "The active task is `%s`: %s\n\n", task.ID, task.Goal)
	fmt.Fprintf(&b, "You are in the **%s** phase (%d%% through the workflow).\n", current, state.Progress(current))
	b.WriteString("Only do work appropriate for this phase. ")
	if next, ok := state.Next(current); ok {
		fmt.Fprintf(&b, "The only legal next state is **%s**; advance with `aiflow sync --state %s` once the phase checklist is complete.\n", next, next)
	} else {
		b.WriteString("This is the final phase; complete the task with `aiflow task complete` when done.\n")
	}
	return b.String()
}

// renderWarnings produces the warnings digest.
func renderWarnings(warnings []string) string {
	var b strings.Builder
	b.WriteString("# Warnings\n\n")
	for _, warning := range warnings {
		fmt.Fprintf(&b, "- %s\n", warning)
	}
	return b.String()
}

// currentState returns the task's workflow state, defaulting to the first
// state when the task has no workflow yet.
func currentState(task *domain.Task) constants.WorkflowState {
	if task.Workflow == nil {
		return constants.StateUnderstanding
	}
	return task.Workflow.CurrentState
}
