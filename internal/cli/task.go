package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aiflow-dev/aiflow/internal/artifact"
	"github.com/aiflow-dev/aiflow/internal/constants"
	"github.com/aiflow-dev/aiflow/internal/domain"
	"github.com/aiflow-dev/aiflow/internal/errors"
	"github.com/aiflow-dev/aiflow/internal/queue"
	"github.com/aiflow-dev/aiflow/internal/state"
)

// AddTaskCommand adds the task command group to the parent command.
func AddTaskCommand(parent *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage the task queue",
	}

	cmd.AddCommand(newTaskCreateCmd(flags))
	cmd.AddCommand(newTaskStatusCmd(flags))
	cmd.AddCommand(newTaskCompleteCmd(flags))
	cmd.AddCommand(newTaskListCmd(flags))
	cmd.AddCommand(newTaskActivateCmd(flags))
	cmd.AddCommand(newTaskArchiveCmd(flags))

	parent.AddCommand(cmd)
}

// newTaskCreateCmd creates the task create subcommand.
func newTaskCreateCmd(flags *GlobalFlags) *cobra.Command {
	var (
		priority string
		tags     []string
		estimate string
		satisfy  []string
		queued   bool
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "create <goal>",
		Short: "Create a new task",
		Long: `Create a new task with the given goal (10 to 500 characters).

When no task is active the new task is activated immediately and starts
in the UNDERSTANDING phase; otherwise it is queued. Use --queued to keep
it out of the active slot either way, or --force to activate it anyway,
demoting the current task back to the queue with its progress kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}

			task, err := svc.Create(cmd.Context(), args[0], queue.CreateOptions{
				Priority:      constants.Priority(strings.ToUpper(priority)),
				Tags:          tags,
				EstimatedTime: estimate,
				Requirements:  satisfy,
				Queued:        queued,
				Force:         force,
			})
			if err != nil {
				return emitError(cmd, flags, err)
			}

			next := []NextAction{}
			if task.Status == constants.TaskStatusActive {
				next = append(next,
					NextAction{
						Type:     ActionCommand,
						Action:   "aiflow checklist complete understand-requirements",
						Reason:   "the UNDERSTANDING checklist gates the first transition",
						Required: true,
					},
					NextAction{
						Type:   ActionReadFile,
						Action: constants.ContextDir + "/" + constants.NextStepsFileName,
						Reason: "the rendered phase checklist lives there",
					})
			}
			return Emit(cmd.OutOrStdout(), flags, OKResponse(task, next...),
				fmt.Sprintf("Created %s task %s: %s\n", strings.ToLower(task.Status.String()), task.ID, task.Goal))
		},
	}

	cmd.Flags().StringVarP(&priority, "priority", "p", string(constants.PriorityMedium), "task priority (CRITICAL|HIGH|MEDIUM|LOW)")
	cmd.Flags().StringSliceVarP(&tags, "tags", "t", nil, "comma-separated task tags")
	cmd.Flags().StringVar(&estimate, "estimate", "", "estimated effort (e.g. \"2 days\", \"3 hours\")")
	cmd.Flags().StringSliceVar(&satisfy, "satisfies", nil, "requirement IDs this task satisfies")
	cmd.Flags().BoolVar(&queued, "queued", false, "queue the task even when no task is active")
	cmd.Flags().BoolVar(&force, "force", false, "activate the new task, demoting any active task back to the queue")
	cmd.MarkFlagsMutuallyExclusive("queued", "force")

	return cmd
}

// newTaskStatusCmd creates the task status subcommand.
func newTaskStatusCmd(flags *GlobalFlags) *cobra.Command {
	var stateOnly bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the active task and its phase checklist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}

			task, err := svc.Current(cmd.Context())
			if err != nil {
				return emitError(cmd, flags, err)
			}
			if task == nil {
				// Having no active task is a normal condition, not a
				// failure: the envelope says error, the process exits 0.
				resp := &Response{
					Status:   StatusError,
					Error:    "no active task",
					ExitCode: ExitSuccess,
					NextActions: []NextAction{{
						Type:   ActionCommand,
						Action: "aiflow task create <goal>",
						Reason: "nothing is active; create a task to start the workflow",
					}},
				}
				return Emit(cmd.OutOrStdout(), flags, resp,
					"No active task. Create one with: aiflow task create <goal>\n")
			}

			current := taskState(task)
			if stateOnly {
				return Emit(cmd.OutOrStdout(), flags,
					OKResponse(map[string]any{"state": current, "progress": state.Progress(current)}),
					fmt.Sprintf("%s\n", current))
			}

			lines, err := svc.ChecklistLines(cmd.Context(), task)
			if err != nil {
				return emitError(cmd, flags, err)
			}

			var b strings.Builder
			fmt.Fprintf(&b, "Task:     %s\n", task.ID)
			fmt.Fprintf(&b, "Goal:     %s\n", task.Goal)
			fmt.Fprintf(&b, "Priority: %s\n", task.Priority)
			fmt.Fprintf(&b, "State:    %s (%d%%)\n", current, state.Progress(current))
			if len(lines) > 0 {
				b.WriteString("Checklist:\n")
				for _, line := range lines {
					mark := " "
					if line.Completed {
						mark = "x"
					}
					suffix := ""
					if line.Required {
						suffix = " (required)"
					}
					fmt.Fprintf(&b, "  [%s] %s%s\n", mark, line.ID, suffix)
				}
			}

			data := map[string]any{
				"task":      task,
				"state":     current,
				"progress":  state.Progress(current),
				"checklist": lines,
			}
			return Emit(cmd.OutOrStdout(), flags, OKResponse(data, statusNextActions(task, lines)...), b.String())
		},
	}

	cmd.Flags().BoolVar(&stateOnly, "state-only", false, "print only the current workflow state")

	return cmd
}

// statusNextActions derives next-action hints from the checklist state.
func statusNextActions(task *domain.Task, lines []artifact.ChecklistLine) []NextAction {
	for _, line := range lines {
		if line.Required && !line.Completed {
			return []NextAction{{
				Type:     ActionCommand,
				Action:   "aiflow checklist complete " + line.ID,
				Reason:   "required before leaving " + string(taskState(task)),
				Required: true,
			}}
		}
	}
	if next, ok := state.Next(taskState(task)); ok {
		return []NextAction{{
			Type:   ActionCommand,
			Action: "aiflow sync --state " + string(next),
			Reason: "all required checklist items are complete",
		}}
	}
	return []NextAction{{
		Type:   ActionCommand,
		Action: "aiflow task complete",
		Reason: "the workflow is in its final phase",
	}}
}

// newTaskCompleteCmd creates the task complete subcommand.
func newTaskCompleteCmd(flags *GlobalFlags) *cobra.Command {
	var (
		autoNext   bool
		noAutoNext bool
	)

	cmd := &cobra.Command{
		Use:   "complete [task-id]",
		Short: "Complete the active task",
		Long: `Complete a task. Completion is only admitted from READY_TO_COMMIT.

Without a task id the active task is completed. By default (configurable
via autoActions.task.complete.autoActivateNext) the highest-priority
oldest queued task is activated next.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if autoNext && noAutoNext {
				return fmt.Errorf("%w: --auto-activate-next and --no-auto-activate-next", errors.ErrConflictingFlags)
			}

			svc, err := newService()
			if err != nil {
				return err
			}

			opts := queue.CompleteOptions{}
			if autoNext {
				v := true
				opts.AutoActivateNext = &v
			}
			if noAutoNext {
				v := false
				opts.AutoActivateNext = &v
			}

			id := ""
			if len(args) == 1 {
				id = args[0]
			}

			result, err := svc.Complete(cmd.Context(), id, opts)
			if err != nil {
				return emitError(cmd, flags, err)
			}

			var b strings.Builder
			if result.AlreadyCompleted {
				fmt.Fprintf(&b, "Task %s was already completed.\n", result.Completed.ID)
			} else {
				fmt.Fprintf(&b, "Completed task %s.\n", result.Completed.ID)
			}
			var next []NextAction
			if result.NextActive != nil {
				fmt.Fprintf(&b, "Activated next task %s: %s\n", result.NextActive.ID, result.NextActive.Goal)
				next = append(next, NextAction{
					Type:   ActionCheckState,
					Action: "aiflow task status",
					Reason: "a new task is now active",
				})
			}
			return Emit(cmd.OutOrStdout(), flags, OKResponse(result, next...), b.String())
		},
	}

	cmd.Flags().BoolVar(&autoNext, "auto-activate-next", false, "activate the next queued task after completion")
	cmd.Flags().BoolVar(&noAutoNext, "no-auto-activate-next", false, "do not activate the next queued task")

	return cmd
}

// newTaskListCmd creates the task list subcommand.
func newTaskListCmd(flags *GlobalFlags) *cobra.Command {
	var (
		statuses []string
		limit    int
		archived bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks in display order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}

			opts := queue.ListOptions{Limit: limit, IncludeArchived: archived}
			for _, s := range statuses {
				opts.Statuses = append(opts.Statuses, constants.TaskStatus(strings.ToUpper(s)))
			}

			tasks, err := svc.List(cmd.Context(), opts)
			if err != nil {
				return emitError(cmd, flags, err)
			}

			var b strings.Builder
			if len(tasks) == 0 {
				b.WriteString("No tasks.\n")
			}
			for _, task := range tasks {
				fmt.Fprintf(&b, "%-10s %-8s %s  %s\n", task.Status, task.Priority, task.ID, task.Goal)
			}
			return Emit(cmd.OutOrStdout(), flags, OKResponse(tasks), b.String())
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "filter by status (QUEUED|ACTIVE|DONE|ARCHIVED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of tasks to show")
	cmd.Flags().BoolVar(&archived, "include-archived", false, "include archived tasks")

	return cmd
}

// newTaskActivateCmd creates the task activate subcommand.
func newTaskActivateCmd(flags *GlobalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activate <task-id>",
		Short: "Activate a queued task",
		Long: `Activate a queued task. Any currently active task is demoted back to
the queue with its workflow progress preserved, so it can be resumed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}

			task, err := svc.Activate(cmd.Context(), args[0])
			if err != nil {
				return emitError(cmd, flags, err)
			}
			return Emit(cmd.OutOrStdout(), flags, OKResponse(task),
				fmt.Sprintf("Activated task %s in state %s.\n", task.ID, taskState(task)))
		},
	}
	return cmd
}

// newTaskArchiveCmd creates the task archive subcommand.
func newTaskArchiveCmd(flags *GlobalFlags) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Archive old completed tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}

			count, err := svc.Archive(cmd.Context(), days)
			if err != nil {
				return emitError(cmd, flags, err)
			}
			return Emit(cmd.OutOrStdout(), flags, OKResponse(map[string]int{"archived": count}),
				fmt.Sprintf("Archived %d task(s) completed more than %d days ago.\n", count, days))
		},
	}

	cmd.Flags().IntVar(&days, "days", constants.ArchiveHorizonDays, "archive tasks completed more than this many days ago")

	return cmd
}

// taskState returns the task's workflow state, defaulting to the first
// phase for tasks without a workflow.
func taskState(task *domain.Task) constants.WorkflowState {
	if task.Workflow == nil {
		return constants.StateUnderstanding
	}
	return task.Workflow.CurrentState
}

// emitError renders the error envelope in machine mode and returns the
// error either way so the process exit code is set.
func emitError(cmd *cobra.Command, flags *GlobalFlags, err error) error {
	if MachineOutput(flags) {
		_ = WriteResponse(cmd.OutOrStdout(), flags, ErrorResponse(err))
	}
	return err
}
