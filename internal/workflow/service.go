// Package workflow is the lifecycle service tying the queue, the derived
// files, the checklists, and validation together. CLI commands call into
// this package; it owns the ordering of load, mutate, persist, sync, and
// artefact regeneration under a single queue lock.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiflow-dev/aiflow/internal/artifact"
	"github.com/aiflow-dev/aiflow/internal/checklist"
	"github.com/aiflow-dev/aiflow/internal/clock"
	"github.com/aiflow-dev/aiflow/internal/config"
	"github.com/aiflow-dev/aiflow/internal/constants"
	"github.com/aiflow-dev/aiflow/internal/domain"
	aferrors "github.com/aiflow-dev/aiflow/internal/errors"
	"github.com/aiflow-dev/aiflow/internal/filesync"
	"github.com/aiflow-dev/aiflow/internal/pattern"
	"github.com/aiflow-dev/aiflow/internal/queue"
	"github.com/aiflow-dev/aiflow/internal/state"
	"github.com/aiflow-dev/aiflow/internal/validate"
)

// Service orchestrates the task lifecycle for one project.
type Service struct {
	projectRoot string
	store       *queue.Store
	syncer      *filesync.Syncer
	provider    *pattern.Provider
	verifier    *pattern.Verifier
	validator   *validate.Validator
	cache       *validate.Cache
	writer      *artifact.Writer
	runner      pattern.CommandRunner
	clk         clock.Clock
	logger      zerolog.Logger
}

// NewService wires a Service for the given project root.
func NewService(projectRoot string, clk clock.Clock, logger zerolog.Logger) *Service {
	if clk == nil {
		clk = clock.RealClock{}
	}
	store := queue.NewStore(projectRoot, clk, logger)
	runner := pattern.ShellRunner{Dir: projectRoot}
	verifier := pattern.NewVerifier(projectRoot, runner, clk)
	return &Service{
		projectRoot: projectRoot,
		store:       store,
		syncer:      filesync.NewSyncer(store.ContextDir(), clk, logger),
		provider:    pattern.NewProvider(store.ContextDir(), logger),
		verifier:    verifier,
		validator:   validate.NewValidator(verifier, clk),
		cache:       validate.NewCache(store.ContextDir(), clk),
		writer:      artifact.NewWriter(projectRoot, logger),
		runner:      runner,
		clk:         clk,
		logger:      logger,
	}
}

// Store exposes the underlying queue store for read-only callers.
func (s *Service) Store() *queue.Store {
	return s.store
}

// registry builds the checklist registry with the project's patterns.
func (s *Service) registry(ctx context.Context) (*checklist.Registry, []domain.Pattern, error) {
	patterns, err := s.provider.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	return checklist.NewRegistry(patterns), patterns, nil
}

// Create creates a task and, when it becomes active immediately, syncs the
// derived files and artefacts.
func (s *Service) Create(ctx context.Context, goal string, opts queue.CreateOptions) (*domain.Task, error) {
	reg, _, err := s.registry(ctx)
	if err != nil {
		return nil, err
	}

	var task *domain.Task
	err = s.store.WithLock(ctx, func() error {
		q, err := s.store.Load(ctx)
		if err != nil {
			return err
		}
		task, err = s.store.Build(q, goal, opts)
		if err != nil {
			return err
		}
		if task.Status == constants.TaskStatusActive {
			reg.Initialize(task.Workflow, task.Workflow.CurrentState, task.Tags)
		}
		if err := s.store.Save(ctx, q); err != nil {
			return err
		}
		if task.Status == constants.TaskStatusActive {
			return s.refreshDerived(ctx, reg, task, filesync.Options{}, nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("task_id", task.ID).Str("status", task.Status.String()).Msg("task created")
	return task, nil
}

// Activate switches the active task, preserving the demoted task's workflow
// so it can be resumed later.
func (s *Service) Activate(ctx context.Context, id string) (*domain.Task, error) {
	reg, _, err := s.registry(ctx)
	if err != nil {
		return nil, err
	}

	var task *domain.Task
	err = s.store.WithLock(ctx, func() error {
		q, err := s.store.Load(ctx)
		if err != nil {
			return err
		}
		task, err = s.store.Activate(q, id)
		if err != nil {
			return err
		}
		reg.Initialize(task.Workflow, task.Workflow.CurrentState, task.Tags)
		if err := s.store.Save(ctx, q); err != nil {
			return err
		}
		return s.refreshDerived(ctx, reg, task, filesync.Options{Backup: true}, nil)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("task_id", task.ID).Msg("task activated")
	return task, nil
}

// Transition advances the active task to the target state. The move must be
// the single legal forward step and the current state's required checklist
// items must all be complete. Entering REVIEWING instantiates the review
// checklist on the task.
//
// A transition that fails as invalid is retried once after a short delay
// with a fresh load, in case a concurrent process advanced the state
// between our read and the lock acquisition.
func (s *Service) Transition(ctx context.Context, target constants.WorkflowState) (*domain.Task, error) {
	parsed, err := state.Parse(string(target))
	if err != nil {
		return nil, err
	}

	task, err := s.transitionOnce(ctx, parsed)
	if err != nil && errors.Is(err, aferrors.ErrInvalidTransition) {
		time.Sleep(constants.CrossProcessRetryDelay)
		task, err = s.transitionOnce(ctx, parsed)
	}
	return task, err
}

// transitionOnce performs one locked transition attempt.
func (s *Service) transitionOnce(ctx context.Context, target constants.WorkflowState) (*domain.Task, error) {
	reg, _, err := s.registry(ctx)
	if err != nil {
		return nil, err
	}

	var task *domain.Task
	err = s.store.WithLock(ctx, func() error {
		q, err := s.store.Load(ctx)
		if err != nil {
			return err
		}
		task = q.ActiveTask()
		if task == nil {
			return aferrors.ErrNoActiveTask
		}

		edited, err := s.syncer.DetectManualEdit(ctx, task)
		if err != nil {
			return err
		}
		var warnings []string
		if edited {
			// A hand-edited file is validated before it is discarded, so
			// corruption introduced by the edit surfaces instead of being
			// silently overwritten. The queue stays authoritative for data.
			legacy, err := s.store.LoadLegacy(ctx)
			if err != nil {
				return err
			}
			if legacy != nil && legacy.Workflow != nil {
				if err := validate.ValidateHistory(task.ID, legacy.Workflow); err != nil {
					return err
				}
			}
			s.logger.Warn().Str("task_id", task.ID).
				Msg("manual edit detected in derived task file, proceeding from queue state")
			warnings = append(warnings, fmt.Sprintf(
				"Manual edit detected in %s; the queue is authoritative and the file was rewritten.",
				constants.LegacyTaskFileName))
		}

		w := task.Workflow
		if err := validate.ValidateHistory(task.ID, w); err != nil {
			return err
		}
		if err := validate.ValidateTransition(w.CurrentState, target); err != nil {
			return err
		}
		if err := reg.IncompleteError(w, w.CurrentState, task.Tags); err != nil {
			return err
		}

		now := s.clk.Now().UTC()
		w.StateHistory = append(w.StateHistory, domain.StateHistoryEntry{
			State:     w.CurrentState,
			EnteredAt: w.StateEnteredAt,
		})
		w.CurrentState = target
		w.StateEnteredAt = now
		reg.Initialize(w, target, task.Tags)

		if target == constants.StateReviewing && task.ReviewChecklist == nil {
			task.ReviewChecklist = checklist.DefaultReviewChecklist(now)
		}

		if err := s.store.Save(ctx, q); err != nil {
			return err
		}
		return s.refreshDerived(ctx, reg, task, filesync.Options{Backup: true}, warnings)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("task_id", task.ID).Str("state", string(target)).Msg("workflow state advanced")
	return task, nil
}

// Complete finishes the active task. Completion is only admitted from
// READY_TO_COMMIT. When auto-activation finds a successor the derived files
// switch to it; otherwise the artefacts are removed and the legacy file is
// left behind as the completion record.
func (s *Service) Complete(ctx context.Context, id string, opts queue.CompleteOptions) (*queue.CompleteResult, error) {
	reg, _, err := s.registry(ctx)
	if err != nil {
		return nil, err
	}
	autoActivate, err := s.resolveAutoActivate(opts)
	if err != nil {
		return nil, err
	}

	var result *queue.CompleteResult
	err = s.store.WithLock(ctx, func() error {
		q, err := s.store.Load(ctx)
		if err != nil {
			return err
		}

		if id == "" {
			active := q.ActiveTask()
			if active == nil {
				return aferrors.ErrNoActiveTask
			}
			id = active.ID
		}

		task := q.FindTask(id)
		if task != nil && task.Status == constants.TaskStatusActive {
			if task.Workflow == nil || task.Workflow.CurrentState != constants.StateReadyToCommit {
				return fmt.Errorf("task '%s' is in state %s: %w", id, taskState(task), aferrors.ErrNotReadyToCommit)
			}
		}

		result, err = s.store.Complete(q, id, autoActivate)
		if err != nil {
			return err
		}
		if result.AlreadyCompleted {
			return nil
		}
		if err := s.store.Save(ctx, q); err != nil {
			return err
		}

		if result.NextActive != nil {
			reg.Initialize(result.NextActive.Workflow, result.NextActive.Workflow.CurrentState, result.NextActive.Tags)
			return s.refreshDerived(ctx, reg, result.NextActive, filesync.Options{Backup: true}, nil)
		}

		// No successor: the legacy file records the completion and the
		// other derived artefacts disappear.
		if err := s.syncer.SyncTask(ctx, result.Completed, filesync.Options{Backup: true}); err != nil {
			return err
		}
		return s.writer.RemoveDerived()
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("task_id", result.Completed.ID).Bool("already_completed", result.AlreadyCompleted).
		Msg("task completed")
	return result, nil
}

// resolveAutoActivate applies the override-beats-config rule.
func (s *Service) resolveAutoActivate(opts queue.CompleteOptions) (bool, error) {
	if opts.AutoActivateNext != nil {
		return *opts.AutoActivateNext, nil
	}
	cfg, err := config.Load(s.projectRoot)
	if err != nil {
		return false, err
	}
	return cfg.AutoActions.Task.Complete.AutoActivateNext, nil
}

// Current returns the active task. When the queue has none, a legacy file
// still marked in progress is surfaced as a read-only fallback view.
func (s *Service) Current(ctx context.Context) (*domain.Task, error) {
	task, err := s.store.GetActiveTask(ctx)
	if err != nil {
		return nil, err
	}
	if task != nil {
		return task, nil
	}

	legacy, err := s.store.LoadLegacy(ctx)
	if err != nil || legacy == nil {
		return nil, err
	}
	if legacy.Status == constants.LegacyStatusCompleted {
		return nil, nil
	}
	return domain.TaskFromLegacy(legacy), nil
}

// List returns tasks in display order.
func (s *Service) List(ctx context.Context, opts queue.ListOptions) ([]*domain.Task, error) {
	return s.store.ListTasks(ctx, opts)
}

// Archive flips old completed tasks to ARCHIVED and returns the count.
func (s *Service) Archive(ctx context.Context, horizonDays int) (int, error) {
	return s.store.ArchiveOldTasks(ctx, horizonDays)
}

// MarkChecklistItem completes one checklist item of the active task's
// current state.
func (s *Service) MarkChecklistItem(ctx context.Context, itemID, notes string) (*domain.Task, error) {
	reg, _, err := s.registry(ctx)
	if err != nil {
		return nil, err
	}

	var task *domain.Task
	err = s.store.WithLock(ctx, func() error {
		q, err := s.store.Load(ctx)
		if err != nil {
			return err
		}
		task = q.ActiveTask()
		if task == nil {
			return aferrors.ErrNoActiveTask
		}
		w := task.Workflow
		if err := reg.MarkComplete(w, w.CurrentState, task.Tags, itemID, notes, s.clk.Now()); err != nil {
			return err
		}
		if err := s.store.Save(ctx, q); err != nil {
			return err
		}
		return s.refreshDerived(ctx, reg, task, filesync.Options{}, nil)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ChecklistLines renders the active state's checklist with completion.
func (s *Service) ChecklistLines(ctx context.Context, task *domain.Task) ([]artifact.ChecklistLine, error) {
	reg, _, err := s.registry(ctx)
	if err != nil {
		return nil, err
	}
	return checklistLines(reg, task), nil
}

// checklistLines builds the rendered checklist for the task's current state.
func checklistLines(reg *checklist.Registry, task *domain.Task) []artifact.ChecklistLine {
	if task.Workflow == nil {
		return nil
	}
	w := task.Workflow
	entries := w.Checklists[string(w.CurrentState)]

	items := reg.ItemsForState(w.CurrentState, task.Tags)
	lines := make([]artifact.ChecklistLine, 0, len(items))
	for _, item := range items {
		completion := entries[item.ID]
		lines = append(lines, artifact.ChecklistLine{
			ID:        item.ID,
			Title:     item.Title,
			Required:  item.Required,
			Completed: completion.Completed,
		})
	}
	return lines
}

// refreshDerived rewrites the legacy file and the artefacts for the task.
// Called with the queue lock held, after the queue itself was persisted.
func (s *Service) refreshDerived(ctx context.Context, reg *checklist.Registry, task *domain.Task, opts filesync.Options, warnings []string) error {
	if err := s.syncer.SyncTask(ctx, task, opts); err != nil {
		return err
	}
	return s.writer.WriteAll(ctx, task, checklistLines(reg, task), warnings)
}

// taskState renders the task's workflow state for error messages.
func taskState(task *domain.Task) constants.WorkflowState {
	if task.Workflow == nil {
		return constants.StateUnderstanding
	}
	return task.Workflow.CurrentState
}
