package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// AddChecklistCommand adds the checklist command group to the parent command.
func AddChecklistCommand(parent *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "checklist",
		Short: "Work with the current phase checklist",
	}

	cmd.AddCommand(newChecklistCompleteCmd(flags))

	parent.AddCommand(cmd)
}

// newChecklistCompleteCmd creates the checklist complete subcommand.
func newChecklistCompleteCmd(flags *GlobalFlags) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "complete <item-id>",
		Short: "Mark a checklist item of the current phase complete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}

			task, err := svc.MarkChecklistItem(cmd.Context(), args[0], notes)
			if err != nil {
				return emitError(cmd, flags, err)
			}

			lines, err := svc.ChecklistLines(cmd.Context(), task)
			if err != nil {
				return emitError(cmd, flags, err)
			}

			remaining := 0
			for _, line := range lines {
				if line.Required && !line.Completed {
					remaining++
				}
			}

			text := fmt.Sprintf("Completed checklist item %q.\n", args[0])
			if remaining == 0 {
				text += "All required items are done; the state can advance.\n"
			} else {
				text += fmt.Sprintf("%d required item(s) remaining in %s.\n", remaining, taskState(task))
			}

			data := map[string]any{
				"item":              args[0],
				"remainingRequired": remaining,
				"checklist":         lines,
			}
			return Emit(cmd.OutOrStdout(), flags, OKResponse(data, statusNextActions(task, lines)...), text)
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "notes recorded with the completion")

	return cmd
}
