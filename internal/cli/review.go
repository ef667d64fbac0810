package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aiflow-dev/aiflow/internal/checklist"
	"github.com/aiflow-dev/aiflow/internal/domain"
)

// AddReviewCommand adds the review command group to the parent command.
func AddReviewCommand(parent *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Work with the review checklist",
		Long: `Work with the review checklist instantiated when the active task
enters REVIEWING. Command items can be executed automatically; review and
check items are confirmed manually.`,
	}

	cmd.AddCommand(newReviewStatusCmd(flags))
	cmd.AddCommand(newReviewListCmd(flags))
	cmd.AddCommand(newReviewExecuteCmd(flags))
	cmd.AddCommand(newReviewCheckCmd(flags))

	parent.AddCommand(cmd)
}

// renderReview renders the checklist for text output.
func renderReview(review *domain.ReviewChecklist) string {
	var b strings.Builder
	done := 0
	for i := range review.Items {
		item := &review.Items[i]
		mark := " "
		if item.Completed {
			mark = "x"
			done++
		}
		kind := item.Action.Type
		fmt.Fprintf(&b, "  [%s] %-22s (%s) %s\n", mark, item.ID, kind, item.Title)
	}
	fmt.Fprintf(&b, "%d of %d items complete.\n", done, len(review.Items))
	return b.String()
}

// newReviewStatusCmd creates the review status subcommand.
func newReviewStatusCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the review checklist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}

			review, err := svc.ReviewStatus(cmd.Context())
			if err != nil {
				return emitError(cmd, flags, err)
			}
			if review == nil {
				return Emit(cmd.OutOrStdout(), flags, OKResponse(nil),
					"No review checklist yet; it is created when the task enters REVIEWING.\n")
			}
			return Emit(cmd.OutOrStdout(), flags, OKResponse(review), renderReview(review))
		},
	}
}

// newReviewListCmd creates the review list subcommand.
func newReviewListCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the review checklist items",
		Long: `List the review checklist items with their kind and description.
Before the task enters REVIEWING the default checklist is shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}

			review, err := svc.ReviewStatus(cmd.Context())
			if err != nil {
				return emitError(cmd, flags, err)
			}
			if review == nil {
				review = checklist.DefaultReviewChecklist(time.Now())
			}

			var b strings.Builder
			for i := range review.Items {
				item := &review.Items[i]
				fmt.Fprintf(&b, "%-22s (%s) %s\n", item.ID, item.Action.Type, item.Description)
			}
			return Emit(cmd.OutOrStdout(), flags, OKResponse(review.Items), b.String())
		},
	}
}

// newReviewExecuteCmd creates the review execute subcommand.
func newReviewExecuteCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "execute <item-id>",
		Short: "Run an automated review item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}

			passed, output, err := svc.ExecuteReviewItem(cmd.Context(), args[0])
			if err != nil {
				return emitError(cmd, flags, err)
			}

			text := fmt.Sprintf("Review item %q failed.\n", args[0])
			if passed {
				text = fmt.Sprintf("Review item %q passed and was marked complete.\n", args[0])
			}
			if output != "" {
				text += output + "\n"
			}
			data := map[string]any{"item": args[0], "passed": passed, "output": output}
			if err := Emit(cmd.OutOrStdout(), flags, OKResponse(data), text); err != nil {
				return err
			}
			if !passed {
				return fmt.Errorf("review item %q failed", args[0])
			}
			return nil
		},
	}
}

// newReviewCheckCmd creates the review check subcommand.
func newReviewCheckCmd(flags *GlobalFlags) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "check <item-id>",
		Short: "Mark a manual review item complete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}

			if err := svc.CheckReviewItem(cmd.Context(), args[0], notes); err != nil {
				return emitError(cmd, flags, err)
			}
			return Emit(cmd.OutOrStdout(), flags, OKResponse(map[string]string{"item": args[0]}),
				fmt.Sprintf("Marked review item %q complete.\n", args[0]))
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "notes recorded with the completion")

	return cmd
}
