package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aiflow-dev/aiflow/internal/workflow"
)

// AddValidateCommand adds the validate command group to the parent command.
func AddValidateCommand(parent *cobra.Command, flags *GlobalFlags) {
	var (
		save     bool
		useCache bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate workflow consistency and pattern compliance",
		Long: `Validate the active task: state history integrity, agreement between
the queue and the derived task file, and the current phase's patterns.
Only error-severity findings block the overall result.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}

			report, cached, err := svc.Validate(cmd.Context(), workflow.ValidateOptions{
				UseCache: useCache,
				Save:     save,
			})
			if err != nil {
				return emitError(cmd, flags, err)
			}

			var b strings.Builder
			verdict := "PASS"
			if !report.Overall {
				verdict = "FAIL"
			}
			source := ""
			if cached {
				source = " (cached)"
			}
			fmt.Fprintf(&b, "Validation %s for %s in %s%s\n", verdict, report.TaskID, report.State, source)
			for _, f := range report.Findings {
				fmt.Fprintf(&b, "  [%s] %s: %s\n", f.Severity, f.Source, f.Message)
			}
			for _, r := range report.Patterns {
				switch {
				case r.Passed:
					fmt.Fprintf(&b, "  pattern %s: ok\n", r.PatternID)
				case r.Manual:
					fmt.Fprintf(&b, "  pattern %s: needs manual verification (aiflow validate verify %s)\n", r.PatternID, r.PatternID)
				default:
					fmt.Fprintf(&b, "  pattern %s: %s [%s]\n", r.PatternID, r.Message, r.Severity)
				}
			}

			resp := OKResponse(map[string]any{"report": report, "cached": cached})
			if !report.Overall {
				resp.Status = "error"
				resp.Error = "validation failed"
				resp.ExitCode = ExitError
			}
			if err := Emit(cmd.OutOrStdout(), flags, resp, b.String()); err != nil {
				return err
			}
			if !report.Overall {
				return fmt.Errorf("validation failed for task %s", report.TaskID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "persist the result to the validation cache")
	cmd.Flags().BoolVar(&useCache, "use-cache", false, "reuse a fresh cached result when available")

	cmd.AddCommand(newValidateVerifyCmd(flags))
	cmd.AddCommand(newValidatePatternsCmd(flags))

	parent.AddCommand(cmd)
}

// newValidatePatternsCmd creates the validate patterns subcommand.
func newValidatePatternsCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "patterns",
		Short: "List the project's pattern definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}

			patterns, err := svc.PatternList(cmd.Context())
			if err != nil {
				return emitError(cmd, flags, err)
			}

			var b strings.Builder
			if len(patterns) == 0 {
				b.WriteString("No patterns defined.\n")
			}
			for i := range patterns {
				p := &patterns[i]
				required := make([]string, len(p.RequiredStates))
				for j, s := range p.RequiredStates {
					required[j] = string(s)
				}
				fmt.Fprintf(&b, "  %-24s %-12s severity=%-8s required=%s\n",
					p.ID, p.Validation.Type, p.EffectiveSeverity(), strings.Join(required, ","))
			}
			return Emit(cmd.OutOrStdout(), flags, OKResponse(patterns), b.String())
		},
	}
}

// newValidateVerifyCmd creates the validate verify subcommand.
func newValidateVerifyCmd(flags *GlobalFlags) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "verify <pattern-id>",
		Short: "Record a manual pattern verification",
		Long: `Record that a pattern requiring manual verification (code_check or
custom validation) has been confirmed for the active task.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}

			result, err := svc.VerifyPattern(cmd.Context(), args[0], notes)
			if err != nil {
				return emitError(cmd, flags, err)
			}
			return Emit(cmd.OutOrStdout(), flags, OKResponse(result),
				fmt.Sprintf("Recorded manual verification of pattern %q.\n", args[0]))
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "notes recorded with the verification")

	return cmd
}
