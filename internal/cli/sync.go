package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aiflow-dev/aiflow/internal/constants"
	"github.com/aiflow-dev/aiflow/internal/errors"
	"github.com/aiflow-dev/aiflow/internal/state"
)

// AddSyncCommand adds the sync command to the parent command.
func AddSyncCommand(parent *cobra.Command, flags *GlobalFlags) {
	var target string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Advance the workflow state of the active task",
		Long: `Advance the active task to the next workflow state with --state.

The move must be the single legal forward step and every required
checklist item of the current state must be complete. Entering REVIEWING
instantiates the task's review checklist.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if target == "" {
				return fmt.Errorf("%w: --state is required", errors.ErrInvalidArgument)
			}

			svc, err := newService()
			if err != nil {
				return err
			}

			task, err := svc.Transition(cmd.Context(), constants.NormalizeState(target))
			if err != nil {
				return emitError(cmd, flags, err)
			}

			current := taskState(task)
			var next []NextAction
			if current == constants.StateReviewing {
				next = append(next, NextAction{
					Type:     ActionCommand,
					Action:   "aiflow review status",
					Reason:   "the review checklist was instantiated",
					Required: true,
				})
			}
			return Emit(cmd.OutOrStdout(), flags, OKResponse(task, next...),
				fmt.Sprintf("Task %s advanced to %s (%d%%).\n", task.ID, current, state.Progress(current)))
		},
	}

	cmd.Flags().StringVar(&target, "state", "", "target workflow state")

	parent.AddCommand(cmd)
}
