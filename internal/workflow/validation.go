package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/aiflow-dev/aiflow/internal/constants"
	"github.com/aiflow-dev/aiflow/internal/domain"
	aferrors "github.com/aiflow-dev/aiflow/internal/errors"
	"github.com/aiflow-dev/aiflow/internal/pattern"
	"github.com/aiflow-dev/aiflow/internal/validate"
)

// ValidateOptions configures a validation run.
type ValidateOptions struct {
	// UseCache serves a fresh cached result for the same task when present.
	UseCache bool

	// Save persists the result to the validation cache.
	Save bool
}

// Validate runs (or retrieves) the full validation for the active task.
// The second return value is true when the report came from the cache.
func (s *Service) Validate(ctx context.Context, opts ValidateOptions) (*validate.Report, bool, error) {
	task, err := s.Current(ctx)
	if err != nil {
		return nil, false, err
	}
	if task == nil {
		return nil, false, aferrors.ErrNoActiveTask
	}

	if opts.UseCache {
		cached, err := s.cache.Fresh(ctx, task.ID)
		if err == nil && cached.Report != nil {
			return cached.Report, true, nil
		}
		if err != nil && !errors.Is(err, aferrors.ErrCacheStale) {
			return nil, false, err
		}
	}

	legacy, err := s.store.LoadLegacy(ctx)
	if err != nil {
		return nil, false, err
	}
	patterns, err := s.provider.Load(ctx)
	if err != nil {
		return nil, false, err
	}

	report, err := s.validator.ValidateTask(ctx, task, legacy, patterns)
	if err != nil {
		return nil, false, err
	}

	if opts.Save {
		if err := s.cache.Save(ctx, &validate.CachedResult{
			TaskID:  task.ID,
			Overall: report.Overall,
			Report:  report,
		}); err != nil {
			s.logger.Warn().Err(err).Msg("failed to save validation cache")
		}
	}

	// Non-blocking problems surface in the warnings digest so they are
	// visible without re-running validation.
	if err := s.writer.WriteWarnings(reportWarnings(report)); err != nil {
		s.logger.Warn().Err(err).Msg("failed to write warnings digest")
	}
	return report, false, nil
}

// reportWarnings flattens a report into warning lines: warning-severity
// findings plus failed non-blocking pattern checks.
func reportWarnings(report *validate.Report) []string {
	var warnings []string
	for _, f := range report.Findings {
		if f.Severity == constants.SeverityWarning {
			warnings = append(warnings, f.Message)
		}
	}
	for _, r := range report.Patterns {
		if !r.Passed && !r.Blocking {
			msg := r.Message
			if msg == "" {
				msg = "check failed"
			}
			warnings = append(warnings, fmt.Sprintf("pattern %s: %s", r.PatternID, msg))
		}
	}
	return warnings
}

// VerifyPattern records a manual confirmation for a pattern on the active
// task and in the validation cache.
func (s *Service) VerifyPattern(ctx context.Context, patternID, notes string) (pattern.Result, error) {
	task, err := s.Current(ctx)
	if err != nil {
		return pattern.Result{}, err
	}
	if task == nil {
		return pattern.Result{}, aferrors.ErrNoActiveTask
	}

	patterns, err := s.provider.Load(ctx)
	if err != nil {
		return pattern.Result{}, err
	}
	p := pattern.Find(patterns, patternID)
	if p == nil {
		return pattern.Result{}, fmt.Errorf("pattern '%s': %w", patternID, aferrors.ErrPatternNotFound)
	}

	result := s.verifier.MarkVerified(p)
	if notes != "" {
		result.Message = notes
	}
	if err := s.cache.MarkCursorVerified(ctx, task.ID, patternID, notes); err != nil {
		return pattern.Result{}, err
	}
	s.logger.Info().Str("pattern", patternID).Str("task_id", task.ID).Msg("pattern manually verified")
	return result, nil
}

// PatternList returns the project's pattern definitions.
func (s *Service) PatternList(ctx context.Context) ([]domain.Pattern, error) {
	return s.provider.Load(ctx)
}
