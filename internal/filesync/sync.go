// Package filesync keeps the derived legacy task file consistent with the
// authoritative queue. It owns rolling backups of the legacy file, manual
// edit detection, and rollback.
package filesync

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aiflow-dev/aiflow/internal/clock"
	"github.com/aiflow-dev/aiflow/internal/constants"
	"github.com/aiflow-dev/aiflow/internal/domain"
	aferrors "github.com/aiflow-dev/aiflow/internal/errors"
	"github.com/aiflow-dev/aiflow/internal/fsutil"
)

// Syncer writes the derived legacy view of the active task.
type Syncer struct {
	contextDir string
	clk        clock.Clock
	logger     zerolog.Logger
}

// NewSyncer creates a Syncer for the given context directory.
func NewSyncer(contextDir string, clk clock.Clock, logger zerolog.Logger) *Syncer {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Syncer{contextDir: contextDir, clk: clk, logger: logger}
}

// LegacyPath returns the path of the derived legacy task file.
func (s *Syncer) LegacyPath() string {
	return filepath.Join(s.contextDir, constants.LegacyTaskFileName)
}

// backupDir returns the rolling backup directory.
func (s *Syncer) backupDir() string {
	return filepath.Join(s.contextDir, constants.BackupsDir)
}

// Options configures one sync pass.
type Options struct {
	// Backup snapshots the current legacy file before overwriting it.
	Backup bool

	// PreserveFields names top-level JSON fields whose on-disk values
	// survive the sync. Requirements and the review checklist are always
	// taken from the queue regardless of this list.
	PreserveFields []string
}

// SyncTask rewrites the legacy file from the queue task. The write is
// atomic and the operation is idempotent: syncing the same task twice
// produces the same file.
func (s *Syncer) SyncTask(ctx context.Context, task *domain.Task, opts Options) error {
	// Check for cancellation at entry
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	derived := domain.LegacyFromTask(task)
	doc, err := toMap(derived)
	if err != nil {
		return fmt.Errorf("failed to encode legacy view: %w", err)
	}

	existing, err := s.readRaw()
	if err != nil {
		s.logger.Warn().Err(err).Msg("ignoring unreadable legacy file during sync")
		existing = nil
	}

	if existing != nil {
		for _, field := range opts.PreserveFields {
			if preservedFromQueue(field) {
				continue
			}
			if v, ok := existing[field]; ok {
				doc[field] = v
			}
		}
	}

	if opts.Backup && existing != nil {
		if err := s.Backup(); err != nil {
			s.logger.Warn().Err(err).Msg("legacy file backup failed")
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal legacy file: %w", err)
	}

	if err := os.MkdirAll(s.contextDir, constants.DirPerm); err != nil {
		return fmt.Errorf("failed to create context directory: %w", err)
	}
	if err := fsutil.WithRetry(ctx, func() error {
		return fsutil.AtomicWrite(s.LegacyPath(), data)
	}); err != nil {
		return fmt.Errorf("failed to write legacy file: %w", err)
	}
	return nil
}

// preservedFromQueue reports whether the field is always taken from the
// queue and therefore exempt from preservation.
func preservedFromQueue(field string) bool {
	return field == "requirements" || field == "reviewChecklist"
}

// DetectManualEdit reports whether the on-disk legacy file diverges from
// the queue task in an essential field. A missing or unparsable file is
// not a manual edit.
func (s *Syncer) DetectManualEdit(ctx context.Context, task *domain.Task) (bool, error) {
	// Check for cancellation at entry
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	data, err := os.ReadFile(s.LegacyPath()) //#nosec G304 -- path is constructed internally
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read legacy file: %w", err)
	}

	var onDisk domain.LegacyTask
	if err := json.Unmarshal(data, &onDisk); err != nil {
		return false, nil
	}

	derived := domain.LegacyFromTask(task)
	if onDisk.TaskID != derived.TaskID {
		return true, nil
	}
	if onDisk.OriginalGoal != derived.OriginalGoal {
		return true, nil
	}
	if strings.TrimSpace(onDisk.Status) != derived.Status {
		return true, nil
	}
	diskState, derivedState := workflowState(onDisk.Workflow), workflowState(derived.Workflow)
	if diskState != derivedState {
		return true, nil
	}
	if !slices.Equal(onDisk.Requirements, derived.Requirements) {
		return true, nil
	}
	return false, nil
}

// workflowState extracts the normalized current state, empty when absent.
func workflowState(w *domain.Workflow) constants.WorkflowState {
	if w == nil {
		return ""
	}
	return constants.NormalizeState(string(w.CurrentState))
}

// Backup snapshots the legacy file into the backups directory with a
// millisecond timestamp suffix, then prunes old snapshots beyond the cap.
func (s *Syncer) Backup() error {
	data, err := os.ReadFile(s.LegacyPath()) //#nosec G304 -- path is constructed internally
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read legacy file for backup: %w", err)
	}

	if err := os.MkdirAll(s.backupDir(), constants.DirPerm); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := fmt.Sprintf("%s.backup.%d", constants.LegacyTaskFileName, s.clk.Now().UTC().UnixMilli())
	if err := os.WriteFile(filepath.Join(s.backupDir(), name), data, constants.FilePerm); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}

	s.pruneBackups()
	return nil
}

// pruneBackups keeps only the newest MaxBackups snapshots of the legacy
// file. Failures are logged and swallowed; pruning is best effort.
func (s *Syncer) pruneBackups() {
	names, err := s.backupNames()
	if err != nil {
		s.logger.Warn().Err(err).Msg("backup pruning skipped")
		return
	}
	for len(names) > constants.MaxBackups {
		oldest := names[0]
		names = names[1:]
		if err := os.Remove(filepath.Join(s.backupDir(), oldest)); err != nil {
			s.logger.Warn().Err(err).Str("backup", oldest).Msg("failed to prune backup")
		}
	}
}

// backupNames lists legacy-file backups sorted oldest first. The timestamp
// suffix is fixed width for the engine's lifetime so a lexical sort is a
// chronological sort.
func (s *Syncer) backupNames() ([]string, error) {
	entries, err := os.ReadDir(s.backupDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	prefix := constants.LegacyTaskFileName + ".backup."
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Rollback restores the newest backup over the legacy file. Returns
// ErrBackupNotFound when no snapshot exists.
func (s *Syncer) Rollback() error {
	names, err := s.backupNames()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(names) == 0 {
		return fmt.Errorf("no backup of %s: %w", constants.LegacyTaskFileName, aferrors.ErrBackupNotFound)
	}

	newest := names[len(names)-1]
	data, err := os.ReadFile(filepath.Join(s.backupDir(), newest)) //#nosec G304 -- path is constructed internally
	if err != nil {
		return fmt.Errorf("failed to read backup: %w", err)
	}
	if err := fsutil.AtomicWrite(s.LegacyPath(), data); err != nil {
		return fmt.Errorf("failed to restore backup: %w", err)
	}
	return nil
}

// Remove deletes the legacy file. Used when the queue empties out; absence
// is not an error.
func (s *Syncer) Remove() error {
	if err := os.Remove(s.LegacyPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove legacy file: %w", err)
	}
	return nil
}

// toMap converts the legacy struct into a generic document for field-level
// preservation merging.
func toMap(l *domain.LegacyTask) (map[string]any, error) {
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// readRaw reads the legacy file as a generic document, nil when absent.
func (s *Syncer) readRaw() (map[string]any, error) {
	data, err := os.ReadFile(s.LegacyPath()) //#nosec G304 -- path is constructed internally
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
