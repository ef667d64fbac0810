// Package queue implements the authoritative task queue store.
// This package owns the persistence layer for the queue file, with atomic
// writes, sidecar file locking, and a one-shot legacy-file migration.
//
// All mutating entry points take the file lock for their whole duration;
// reads do not. Callers requiring cross-file consistency with the legacy
// task file must go through the mutating entry points.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aiflow-dev/aiflow/internal/clock"
	"github.com/aiflow-dev/aiflow/internal/constants"
	"github.com/aiflow-dev/aiflow/internal/domain"
	aferrors "github.com/aiflow-dev/aiflow/internal/errors"
	"github.com/aiflow-dev/aiflow/internal/flock"
	"github.com/aiflow-dev/aiflow/internal/fsutil"
)

// Store persists the task queue for one project.
type Store struct {
	projectRoot string
	clk         clock.Clock
	logger      zerolog.Logger
	lock        *flock.Lock

	migrateOnce sync.Once
}

// NewStore creates a Store rooted at the given project directory.
func NewStore(projectRoot string, clk clock.Clock, logger zerolog.Logger) *Store {
	if clk == nil {
		clk = clock.RealClock{}
	}
	s := &Store{
		projectRoot: projectRoot,
		clk:         clk,
		logger:      logger,
	}
	s.lock = flock.New(s.QueuePath())
	return s
}

// ProjectRoot returns the project root directory.
func (s *Store) ProjectRoot() string {
	return s.projectRoot
}

// ContextDir returns the path of the engine context directory.
func (s *Store) ContextDir() string {
	return filepath.Join(s.projectRoot, constants.ContextDir)
}

// QueuePath returns the path of the authoritative queue file.
func (s *Store) QueuePath() string {
	return filepath.Join(s.ContextDir(), constants.QueueFileName)
}

// LegacyPath returns the path of the legacy single-task file.
func (s *Store) LegacyPath() string {
	return filepath.Join(s.ContextDir(), constants.LegacyTaskFileName)
}

// Clock returns the store's clock.
func (s *Store) Clock() clock.Clock {
	return s.clk
}

// WithLock acquires the queue file lock, runs fn, and guarantees release.
// The context directory is created first: the lock marker lives inside it,
// so on a fresh project nothing exists for the marker to be created in.
// Lock acquisition failures surface unchanged (including ErrLockTimeout).
func (s *Store) WithLock(ctx context.Context, fn func() error) error {
	if err := os.MkdirAll(s.ContextDir(), constants.DirPerm); err != nil {
		return fmt.Errorf("failed to create context directory: %w", err)
	}
	return s.lock.WithLock(ctx, fn)
}

// Load reads the queue store from disk. A missing file yields an empty
// store. Load performs the one-shot legacy migration on first access in
// the process, then reads without taking the lock: readers see a consistent
// snapshot of one file version thanks to atomic writes.
func (s *Store) Load(ctx context.Context) (*domain.QueueStore, error) {
	// Check for cancellation at entry
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.migrateOnce.Do(func() { s.migrateLegacy(ctx) })

	var data []byte
	err := fsutil.WithRetry(ctx, func() error {
		var readErr error
		data, readErr = os.ReadFile(s.QueuePath()) //#nosec G304 -- path is constructed internally
		if os.IsNotExist(readErr) {
			data = nil
			return nil
		}
		return readErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read queue: %w", err)
	}
	if data == nil {
		return domain.NewQueueStore(s.clk.Now().UTC()), nil
	}

	var q domain.QueueStore
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", constants.QueueFileName, aferrors.ErrQueueCorrupted)
	}
	if q.Tasks == nil {
		q.Tasks = []*domain.Task{}
	}
	return &q, nil
}

// Save recomputes derived metadata and writes the queue atomically.
// The caller MUST hold the queue lock; Save does not acquire it.
func (s *Store) Save(ctx context.Context, q *domain.QueueStore) error {
	// Check for cancellation at entry
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := os.MkdirAll(s.ContextDir(), constants.DirPerm); err != nil {
		return fmt.Errorf("failed to create context directory: %w", err)
	}

	q.RecomputeMetadata(s.clk.Now().UTC())

	data, err := json.MarshalIndent(q, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal queue: %w", err)
	}

	if err := fsutil.WithRetry(ctx, func() error {
		return fsutil.AtomicWrite(s.QueuePath(), data)
	}); err != nil {
		return fmt.Errorf("failed to write queue: %w", err)
	}
	return nil
}

// LoadLegacy reads the legacy single-task file, returning nil when absent.
func (s *Store) LoadLegacy(ctx context.Context) (*domain.LegacyTask, error) {
	// Check for cancellation at entry
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	data, err := os.ReadFile(s.LegacyPath()) //#nosec G304 -- path is constructed internally
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read legacy task file: %w", err)
	}

	var legacy domain.LegacyTask
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", constants.LegacyTaskFileName, aferrors.ErrLegacyFileCorrupted)
	}
	return &legacy, nil
}

// migrateLegacy converts a legacy single-task file into a queue with one
// task when no queue exists (or the queue is empty). The original legacy
// file is preserved as a timestamped backup. Migration failures log a
// warning and never abort the caller.
func (s *Store) migrateLegacy(ctx context.Context) {
	legacy, err := s.LoadLegacy(ctx)
	if err != nil || legacy == nil {
		if err != nil {
			s.logger.Warn().Err(err).Msg("legacy migration skipped: unreadable legacy file")
		}
		return
	}

	existing, err := s.readQueueRaw()
	if err != nil {
		s.logger.Warn().Err(err).Msg("legacy migration skipped: unreadable queue")
		return
	}
	if existing != nil && len(existing.Tasks) > 0 {
		return
	}

	now := s.clk.Now().UTC()
	q := domain.NewQueueStore(now)
	task := domain.TaskFromLegacy(legacy)
	q.Tasks = append(q.Tasks, task)
	if task.Status == constants.TaskStatusActive {
		q.SetActiveTaskID(task.ID)
	}
	q.RecomputeMetadata(now)

	data, err := json.MarshalIndent(q, "", "  ")
	if err != nil {
		s.logger.Warn().Err(err).Msg("legacy migration failed: marshal")
		return
	}

	backupDir := filepath.Join(s.ContextDir(), constants.BackupsDir)
	if err := os.MkdirAll(backupDir, constants.DirPerm); err == nil {
		backupPath := filepath.Join(backupDir,
			fmt.Sprintf("%s.backup.%d", constants.LegacyTaskFileName, now.UnixMilli()))
		if raw, readErr := os.ReadFile(s.LegacyPath()); readErr == nil { //#nosec G304 -- path is constructed internally
			_ = os.WriteFile(backupPath, raw, constants.FilePerm)
		}
	}

	if err := fsutil.AtomicWrite(s.QueuePath(), data); err != nil {
		s.logger.Warn().Err(err).Msg("legacy migration failed: write queue")
		return
	}
	s.logger.Info().Str("task_id", task.ID).Msg("migrated legacy task file into queue")
}

// readQueueRaw reads and parses the queue file without migration or retry.
// Returns nil when the file does not exist.
func (s *Store) readQueueRaw() (*domain.QueueStore, error) {
	data, err := os.ReadFile(s.QueuePath()) //#nosec G304 -- path is constructed internally
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var q domain.QueueStore
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, err
	}
	return &q, nil
}
