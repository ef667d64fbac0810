// Package fsutil provides crash-safe filesystem helpers shared by the
// queue store and the legacy-file syncer: atomic write-to-temp-then-rename
// and linear-back-off retry for transient IO errors.
package fsutil

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aiflow-dev/aiflow/internal/constants"
	aferrors "github.com/aiflow-dev/aiflow/internal/errors"
)

// AtomicWrite writes data to a file atomically using write-then-rename.
// The temp file is synced to disk before the rename so a crash never leaves
// a partially written target.
func AtomicWrite(path string, data []byte) error {
	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, constants.FilePerm) //#nosec G304 -- path is constructed internally
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write data: %w", err)
	}

	// Ensure data is persisted before rename
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}

// WithRetry runs op, retrying transient IO failures up to
// constants.IORetryAttempts times with linear back-off (100, 200, 300 ms).
// Non-transient errors surface immediately.
func WithRetry(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 0; attempt <= constants.IORetryAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * constants.IORetryBaseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !aferrors.IsTransientIO(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
