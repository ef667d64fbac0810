package workflow

import (
	"context"
	"fmt"

	"github.com/aiflow-dev/aiflow/internal/checklist"
	"github.com/aiflow-dev/aiflow/internal/domain"
	aferrors "github.com/aiflow-dev/aiflow/internal/errors"
	"github.com/aiflow-dev/aiflow/internal/filesync"
)

// ReviewStatus returns the active task's review checklist, nil when the
// task has not reached REVIEWING yet.
func (s *Service) ReviewStatus(ctx context.Context) (*domain.ReviewChecklist, error) {
	task, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, aferrors.ErrNoActiveTask
	}
	return task.ReviewChecklist, nil
}

// ExecuteReviewItem runs an automated review item's command and persists the
// result. Manual items fail with ErrReviewItemManual.
//
// The command runs against an unlocked snapshot: items like the validation
// run re-enter the engine in a child process and would deadlock on the queue
// lock. A passing result is then applied under the lock against a fresh
// load, re-checking that the same task is still active and the item still
// exists.
func (s *Service) ExecuteReviewItem(ctx context.Context, itemID string) (bool, string, error) {
	task, err := s.store.GetActiveTask(ctx)
	if err != nil {
		return false, "", err
	}
	if task == nil {
		return false, "", aferrors.ErrNoActiveTask
	}
	item := task.ReviewChecklist.FindItem(itemID)
	if item == nil {
		return false, "", fmt.Errorf("review item '%s': %w", itemID, aferrors.ErrChecklistItemNotFound)
	}

	passed, output, err := checklist.ExecuteItem(ctx, s.runner, item, s.clk.Now())
	if err != nil || !passed {
		return passed, output, err
	}

	err = s.store.WithLock(ctx, func() error {
		q, err := s.store.Load(ctx)
		if err != nil {
			return err
		}
		current := q.ActiveTask()
		if current == nil || current.ID != task.ID {
			return fmt.Errorf("task '%s': %w", task.ID, aferrors.ErrTaskNotActive)
		}
		fresh := current.ReviewChecklist.FindItem(itemID)
		if fresh == nil {
			return fmt.Errorf("review item '%s': %w", itemID, aferrors.ErrChecklistItemNotFound)
		}
		if !fresh.Completed {
			checklist.CheckItem(fresh, "", s.clk.Now())
		}
		if checklist.ReviewComplete(current.ReviewChecklist) {
			s.logger.Info().Str("task_id", current.ID).Msg("review checklist complete")
		}
		if err := s.store.Save(ctx, q); err != nil {
			return err
		}
		return s.syncer.SyncTask(ctx, current, filesync.Options{})
	})
	return passed, output, err
}

// CheckReviewItem marks a review item complete manually. A task that has not
// entered REVIEWING yet gets the default checklist instantiated on demand,
// so early manual confirmations are not lost.
func (s *Service) CheckReviewItem(ctx context.Context, itemID, notes string) error {
	return s.store.WithLock(ctx, func() error {
		q, err := s.store.Load(ctx)
		if err != nil {
			return err
		}
		task := q.ActiveTask()
		if task == nil {
			return aferrors.ErrNoActiveTask
		}
		if task.ReviewChecklist == nil {
			task.ReviewChecklist = checklist.DefaultReviewChecklist(s.clk.Now())
		}
		item := task.ReviewChecklist.FindItem(itemID)
		if item == nil {
			return fmt.Errorf("review item '%s': %w", itemID, aferrors.ErrChecklistItemNotFound)
		}

		checklist.CheckItem(item, notes, s.clk.Now())
		if checklist.ReviewComplete(task.ReviewChecklist) {
			s.logger.Info().Str("task_id", task.ID).Msg("review checklist complete")
		}
		if err := s.store.Save(ctx, q); err != nil {
			return err
		}
		return s.syncer.SyncTask(ctx, task, filesync.Options{})
	})
}
