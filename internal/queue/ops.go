package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/aiflow-dev/aiflow/internal/config"
	"github.com/aiflow-dev/aiflow/internal/constants"
	"github.com/aiflow-dev/aiflow/internal/domain"
	aferrors "github.com/aiflow-dev/aiflow/internal/errors"
	"github.com/aiflow-dev/aiflow/internal/fsutil"
)

// CreateOptions configures task creation.
type CreateOptions struct {
	// Priority defaults to MEDIUM when empty.
	Priority constants.Priority

	// Tags is the ordered tag list for the new task.
	Tags []string

	// EstimatedTime is the human estimate phrase (e.g. "2 days").
	EstimatedTime string

	// Requirements is the set of requirement identifiers the task satisfies.
	Requirements []string

	// Queued forces the task into the queue even when no task is active.
	Queued bool

	// Force activates the new task even when another task is active; the
	// current task is demoted back to the queue with its workflow preserved.
	Force bool
}

// CompleteOptions configures task completion.
type CompleteOptions struct {
	// AutoActivateNext overrides the configured auto-activation behaviour
	// when non-nil. An explicit override wins over config.
	AutoActivateNext *bool
}

// CompleteResult reports the outcome of a completion.
type CompleteResult struct {
	// Completed is the task that was (or already had been) completed.
	Completed *domain.Task

	// NextActive is the auto-activated successor, if any.
	NextActive *domain.Task

	// AlreadyCompleted is true when the task was DONE before the call;
	// the call is then a no-op.
	AlreadyCompleted bool
}

// ListOptions configures task listing.
type ListOptions struct {
	// Statuses filters to the given statuses when non-empty.
	Statuses []constants.TaskStatus

	// Limit caps the number of returned tasks when positive.
	Limit int

	// IncludeArchived includes ARCHIVED tasks; they are excluded by default.
	IncludeArchived bool
}

// Build validates inputs and appends a new task to the loaded queue.
// If no active task exists and queuing was not requested, the new task
// becomes ACTIVE with a fresh workflow. Force demotes an existing active
// task back to the queue first, workflow intact. The caller must hold the
// lock and persist the queue afterwards.
func (s *Store) Build(q *domain.QueueStore, goal string, opts CreateOptions) (*domain.Task, error) {
	goal = strings.TrimSpace(goal)
	if n := utf8.RuneCountInString(goal); n < constants.GoalMinLength || n > constants.GoalMaxLength {
		return nil, fmt.Errorf("goal is %d characters: %w", n, aferrors.ErrGoalLength)
	}

	priority := opts.Priority
	if priority == "" {
		priority = constants.PriorityMedium
	}
	if !constants.IsValidPriority(priority) {
		return nil, fmt.Errorf("%w: %q", aferrors.ErrInvalidPriority, priority)
	}

	now := s.clk.Now().UTC()
	task := &domain.Task{
		ID:            s.generateTaskID(q, now),
		Goal:          goal,
		Status:        constants.TaskStatusQueued,
		Priority:      priority,
		Tags:          append([]string{}, opts.Tags...),
		CreatedAt:     now,
		EstimatedTime: opts.EstimatedTime,
		Requirements:  append([]string(nil), opts.Requirements...),
	}

	if opts.Force && !opts.Queued {
		if current := q.ActiveTask(); current != nil {
			current.Status = constants.TaskStatusQueued
			q.SetActiveTaskID("")
		}
	}
	if q.ActiveTask() == nil && !opts.Queued {
		task.Status = constants.TaskStatusActive
		task.ActivatedAt = &task.CreatedAt
		task.Workflow = domain.NewWorkflow(now)
		q.SetActiveTaskID(task.ID)
	}

	q.Tasks = append(q.Tasks, task)
	return task, nil
}

// Activate marks the task ACTIVE. An already-active target returns
// unchanged. Any other active task is demoted to QUEUED with its workflow
// preserved verbatim so it remains resumable. The caller must hold the lock
// and persist the queue afterwards.
func (s *Store) Activate(q *domain.QueueStore, id string) (*domain.Task, error) {
	task := q.FindTask(id)
	if task == nil {
		return nil, fmt.Errorf("task '%s': %w", id, aferrors.ErrTaskNotFound)
	}
	if task.Status == constants.TaskStatusActive {
		return task, nil
	}

	if current := q.ActiveTask(); current != nil {
		current.Status = constants.TaskStatusQueued
	}

	now := s.clk.Now().UTC()
	task.Status = constants.TaskStatusActive
	if task.ActivatedAt == nil {
		task.ActivatedAt = &now
	}
	if task.Workflow == nil {
		task.Workflow = domain.NewWorkflow(now)
	}
	q.SetActiveTaskID(task.ID)
	return task, nil
}

// Complete marks the active task DONE and optionally activates the next
// queued task. Completing an already-DONE task is a no-op reported through
// AlreadyCompleted. The caller must hold the lock and persist the queue.
func (s *Store) Complete(q *domain.QueueStore, id string, autoActivateNext bool) (*CompleteResult, error) {
	task := q.FindTask(id)
	if task != nil && task.Status == constants.TaskStatusDone {
		return &CompleteResult{Completed: task, AlreadyCompleted: true}, nil
	}
	if q.ActiveTaskID == nil || *q.ActiveTaskID != id {
		return nil, fmt.Errorf("task '%s': %w", id, aferrors.ErrTaskNotActive)
	}
	if task == nil {
		return nil, fmt.Errorf("task '%s': %w", id, aferrors.ErrTaskNotFound)
	}

	now := s.clk.Now().UTC()
	task.Status = constants.TaskStatusDone
	task.CompletedAt = &now
	if task.ActivatedAt != nil {
		actual := domain.ActualHours(*task.ActivatedAt, now)
		task.ActualTime = &actual
	}
	q.SetActiveTaskID("")

	result := &CompleteResult{Completed: task}
	if autoActivateNext {
		if next := NextQueued(q); next != nil {
			activated, err := s.Activate(q, next.ID)
			if err != nil {
				return nil, err
			}
			result.NextActive = activated
		}
	}
	return result, nil
}

// Archive flips DONE tasks whose completion is older than the horizon to
// ARCHIVED and returns them. Archival is terminal. The caller must hold the
// lock and persist the queue afterwards.
func (s *Store) Archive(q *domain.QueueStore, horizonDays int) []*domain.Task {
	if horizonDays <= 0 {
		horizonDays = constants.ArchiveHorizonDays
	}
	cutoff := s.clk.Now().UTC().AddDate(0, 0, -horizonDays)

	var archived []*domain.Task
	for _, t := range q.Tasks {
		if t.Status == constants.TaskStatusDone && t.CompletedAt != nil && t.CompletedAt.Before(cutoff) {
			t.Status = constants.TaskStatusArchived
			archived = append(archived, t)
		}
	}
	return archived
}

// NextQueued selects the queued task that auto-activation would promote:
// highest priority first, then earliest createdAt, ties broken by id.
func NextQueued(q *domain.QueueStore) *domain.Task {
	var best *domain.Task
	for _, t := range q.Tasks {
		if t.Status != constants.TaskStatusQueued {
			continue
		}
		if best == nil || queuedBefore(t, best) {
			best = t
		}
	}
	return best
}

// queuedBefore reports whether a precedes b in the auto-activation order.
func queuedBefore(a, b *domain.Task) bool {
	if a.Priority.Rank() != b.Priority.Rank() {
		return a.Priority.Rank() < b.Priority.Rank()
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// SortForList orders tasks for listing: ACTIVE first, then QUEUED in
// auto-activation order, then DONE by completedAt descending, then ARCHIVED.
func SortForList(tasks []*domain.Task) {
	rank := func(t *domain.Task) int {
		switch t.Status {
		case constants.TaskStatusActive:
			return 0
		case constants.TaskStatusQueued:
			return 1
		case constants.TaskStatusDone:
			return 2
		default:
			return 3
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if rank(a) != rank(b) {
			return rank(a) < rank(b)
		}
		switch a.Status {
		case constants.TaskStatusQueued:
			return queuedBefore(a, b)
		case constants.TaskStatusDone:
			if a.CompletedAt != nil && b.CompletedAt != nil && !a.CompletedAt.Equal(*b.CompletedAt) {
				return a.CompletedAt.After(*b.CompletedAt)
			}
			return a.ID < b.ID
		default:
			return a.ID < b.ID
		}
	})
}

// generateTaskID produces a task-<epoch-ms> id, appending a short random
// suffix when the millisecond id already exists in the store. The ms-based
// format is part of the on-disk contract; the suffix only disambiguates
// same-millisecond creations.
func (s *Store) generateTaskID(q *domain.QueueStore, now time.Time) string {
	id := fmt.Sprintf("task-%d", now.UnixMilli())
	if q.FindTask(id) == nil {
		return id
	}
	for {
		candidate := fmt.Sprintf("%s-%s", id, uuid.NewString()[:4])
		if q.FindTask(candidate) == nil {
			return candidate
		}
	}
}

// CreateTask is the locked convenience form of Build: load, build, save.
func (s *Store) CreateTask(ctx context.Context, goal string, opts CreateOptions) (*domain.Task, error) {
	var task *domain.Task
	err := s.WithLock(ctx, func() error {
		q, err := s.Load(ctx)
		if err != nil {
			return err
		}
		task, err = s.Build(q, goal, opts)
		if err != nil {
			return err
		}
		return s.Save(ctx, q)
	})
	return task, err
}

// ActivateTask is the locked convenience form of Activate.
func (s *Store) ActivateTask(ctx context.Context, id string) (*domain.Task, error) {
	var task *domain.Task
	err := s.WithLock(ctx, func() error {
		q, err := s.Load(ctx)
		if err != nil {
			return err
		}
		task, err = s.Activate(q, id)
		if err != nil {
			return err
		}
		return s.Save(ctx, q)
	})
	return task, err
}

// CompleteTask is the locked convenience form of Complete. When the options
// carry no explicit override, the configured
// autoActions.task.complete.autoActivateNext value decides auto-activation.
func (s *Store) CompleteTask(ctx context.Context, id string, opts CompleteOptions) (*CompleteResult, error) {
	autoActivate, err := s.resolveAutoActivate(opts)
	if err != nil {
		return nil, err
	}

	var result *CompleteResult
	err = s.WithLock(ctx, func() error {
		q, err := s.Load(ctx)
		if err != nil {
			return err
		}
		result, err = s.Complete(q, id, autoActivate)
		if err != nil {
			return err
		}
		if result.AlreadyCompleted {
			return nil
		}
		return s.Save(ctx, q)
	})
	return result, err
}

// resolveAutoActivate applies the override-beats-config rule.
func (s *Store) resolveAutoActivate(opts CompleteOptions) (bool, error) {
	if opts.AutoActivateNext != nil {
		return *opts.AutoActivateNext, nil
	}
	cfg, err := config.Load(s.projectRoot)
	if err != nil {
		return false, err
	}
	return cfg.AutoActions.Task.Complete.AutoActivateNext, nil
}

// ArchiveOldTasks is the locked convenience form of Archive. Each archived
// task is also written to the task-history directory for later inspection.
func (s *Store) ArchiveOldTasks(ctx context.Context, horizonDays int) (int, error) {
	var count int
	err := s.WithLock(ctx, func() error {
		q, err := s.Load(ctx)
		if err != nil {
			return err
		}
		archived := s.Archive(q, horizonDays)
		count = len(archived)
		if count == 0 {
			return nil
		}
		for _, t := range archived {
			if err := s.writeHistory(t); err != nil {
				s.logger.Warn().Err(err).Str("task_id", t.ID).Msg("failed to write task history")
			}
		}
		return s.Save(ctx, q)
	})
	return count, err
}

// ListTasks filters and orders tasks. Read-only; performs an unlocked read.
func (s *Store) ListTasks(ctx context.Context, opts ListOptions) ([]*domain.Task, error) {
	q, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}

	wanted := make(map[constants.TaskStatus]bool, len(opts.Statuses))
	for _, st := range opts.Statuses {
		wanted[st] = true
	}

	tasks := make([]*domain.Task, 0, len(q.Tasks))
	for _, t := range q.Tasks {
		if t.Status == constants.TaskStatusArchived && !opts.IncludeArchived && !wanted[constants.TaskStatusArchived] {
			continue
		}
		if len(wanted) > 0 && !wanted[t.Status] {
			continue
		}
		tasks = append(tasks, t)
	}

	SortForList(tasks)

	if opts.Limit > 0 && len(tasks) > opts.Limit {
		tasks = tasks[:opts.Limit]
	}
	return tasks, nil
}

// GetActiveTask returns the active task or nil. Read-only; unlocked read.
func (s *Store) GetActiveTask(ctx context.Context) (*domain.Task, error) {
	q, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return q.ActiveTask(), nil
}

// writeHistory snapshots an archived task into the task-history directory.
func (s *Store) writeHistory(t *domain.Task) error {
	dir := filepath.Join(s.ContextDir(), constants.TaskHistoryDir)
	if err := os.MkdirAll(dir, constants.DirPerm); err != nil {
		return err
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return fsutil.AtomicWrite(filepath.Join(dir, t.ID+".json"), data)
}
