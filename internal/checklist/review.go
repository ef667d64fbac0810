package checklist

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aiflow-dev/aiflow/internal/domain"
	aferrors "github.com/aiflow-dev/aiflow/internal/errors"
	"github.com/aiflow-dev/aiflow/internal/pattern"
)

// DefaultReviewChecklist builds the review checklist instantiated on a task
// when it enters REVIEWING: one automated validation run plus the manual
// review categories.
func DefaultReviewChecklist(now time.Time) *domain.ReviewChecklist {
	return &domain.ReviewChecklist{
		CreatedAt: now.UTC(),
		Items: []domain.ReviewItem{
			{
				ID:          "automated-validation",
				Title:       "Automated validation passes",
				Description: "Run the workflow validation and confirm a passing result",
				Action: domain.ReviewAction{
					Type:             domain.ReviewActionCommand,
					Command:          "aiflow validate --silent",
					ExpectedExitCode: 0,
				},
			},
			{
				ID:          "code-quality",
				Title:       "Code quality",
				Description: "Review the change for clarity, naming, duplication, and structure",
				Action: domain.ReviewAction{
					Type:           domain.ReviewActionReview,
					Files:          []string{"**/*"},
					ExpectedResult: "Code reads clearly and follows project conventions",
				},
			},
			{
				ID:          "requirements-coverage",
				Title:       "Requirements coverage",
				Description: "Confirm every targeted requirement is satisfied by the change",
				Action: domain.ReviewAction{
					Type:           domain.ReviewActionCheck,
					ExpectedResult: "All requirement IDs on the task map to implemented behavior",
				},
			},
			{
				ID:          "test-coverage",
				Title:       "Test coverage",
				Description: "Confirm the new behavior and its edge cases are tested",
				Action: domain.ReviewAction{
					Type:           domain.ReviewActionCheck,
					ExpectedResult: "Tests cover the happy path and the edge cases",
				},
			},
			{
				ID:          "error-handling",
				Title:       "Error handling",
				Description: "Check failure paths return useful errors and clean up state",
				Action: domain.ReviewAction{
					Type:           domain.ReviewActionCheck,
					ExpectedResult: "No swallowed errors, no leaked resources on failure",
				},
			},
			{
				ID:          "documentation",
				Title:       "Documentation",
				Description: "Check user-facing docs and doc comments reflect the change",
				Action: domain.ReviewAction{
					Type:           domain.ReviewActionCheck,
					ExpectedResult: "Docs match the implemented behavior",
				},
			},
			{
				ID:          "security",
				Title:       "Security",
				Description: "Check inputs are validated and secrets stay out of logs and files",
				Action: domain.ReviewAction{
					Type:           domain.ReviewActionCheck,
					ExpectedResult: "No injection vectors, no leaked secrets",
				},
			},
		},
	}
}

// ExecuteItem runs an automated review item's command and marks it complete
// when the exit code and expected output match. Manual items fail with
// ErrReviewItemManual.
func ExecuteItem(ctx context.Context, runner pattern.CommandRunner, item *domain.ReviewItem, now time.Time) (bool, string, error) {
	if !item.Automated() {
		return false, "", fmt.Errorf("item '%s' has action type %s: %w", item.ID, item.Action.Type, aferrors.ErrReviewItemManual)
	}

	code, output, err := runner.Run(ctx, item.Action.Command)
	if err != nil {
		return false, output, fmt.Errorf("failed to run %q: %w", item.Action.Command, err)
	}

	passed := code == item.Action.ExpectedExitCode
	for _, want := range item.Action.ExpectedOutput {
		if !strings.Contains(output, want) {
			passed = false
			break
		}
	}
	if passed {
		markDone(item, "", now)
	}
	return passed, output, nil
}

// CheckItem marks a manual review item complete with optional notes. It also
// accepts automated items so a human can override a flaky command.
func CheckItem(item *domain.ReviewItem, notes string, now time.Time) {
	markDone(item, notes, now)
}

func markDone(item *domain.ReviewItem, notes string, now time.Time) {
	completedAt := now.UTC()
	item.Completed = true
	item.CompletedAt = &completedAt
	if notes != "" {
		item.Notes = notes
	}
}

// ReviewComplete reports whether every item of the checklist is completed.
// A nil checklist is trivially complete.
func ReviewComplete(c *domain.ReviewChecklist) bool {
	if c == nil {
		return true
	}
	for i := range c.Items {
		if !c.Items[i].Completed {
			return false
		}
	}
	return true
}
