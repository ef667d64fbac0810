// Package flock provides a mutual-exclusion primitive scoped to one file,
// implemented with a sidecar marker file.
//
// The marker is created atomically with O_CREATE|O_EXCL; contenders poll
// until a timeout. Stale markers (holder process no longer alive, or marker
// older than the stale age) are recovered by forced removal. The marker
// records the holder pid and acquisition time as JSON so other processes
// can judge staleness.
//
// Locks are NOT re-entrant: a second Acquire on the same handle fails with
// ErrLockHeld. Callers must not nest.
package flock

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/aiflow-dev/aiflow/internal/clock"
	"github.com/aiflow-dev/aiflow/internal/constants"
	aferrors "github.com/aiflow-dev/aiflow/internal/errors"
)

// marker is the JSON document written into the lock marker file.
type marker struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquiredAt"`
}

// Lock guards a single file through a sidecar marker.
type Lock struct {
	markerPath string
	timeout    time.Duration
	staleAge   time.Duration
	clk        clock.Clock

	mu       sync.Mutex
	acquired bool
}

// New creates a lock for the given target file, using the default timeout
// and stale age. The marker lives at targetPath + ".lock".
func New(targetPath string) *Lock {
	return NewWithOptions(targetPath, constants.LockTimeout, clock.RealClock{})
}

// NewWithOptions creates a lock with an explicit timeout and clock.
// Used by tests to shorten the acquisition window.
func NewWithOptions(targetPath string, timeout time.Duration, clk clock.Clock) *Lock {
	return &Lock{
		markerPath: targetPath + constants.LockSuffix,
		timeout:    timeout,
		staleAge:   constants.LockStaleAge,
		clk:        clk,
	}
}

// Acquire takes the lock, polling until the timeout. Stale markers are
// recovered silently. Returns ErrLockHeld on re-entrant acquisition and
// ErrLockTimeout when the marker could not be claimed in time.
func (l *Lock) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.acquired {
		return fmt.Errorf("failed to acquire lock on %s: %w", l.markerPath, aferrors.ErrLockHeld)
	}

	deadline := l.clk.Now().Add(l.timeout)
	for {
		// Check for context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := l.tryCreateMarker()
		if err == nil {
			l.acquired = true
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("failed to create lock marker: %w", err)
		}

		// Marker exists; recover it if the holder is gone or it is too old.
		l.recoverStale()

		if l.clk.Now().After(deadline) {
			return fmt.Errorf("failed to acquire lock on %s: %w", l.markerPath, aferrors.ErrLockTimeout)
		}

		time.Sleep(constants.LockPollInterval)
	}
}

// Release removes the marker. Releasing an unacquired lock is a no-op.
func (l *Lock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.acquired {
		return nil
	}
	l.acquired = false

	if err := os.Remove(l.markerPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// WithLock acquires the lock, runs fn, and guarantees release even when fn
// fails. The error from fn wins over a release error.
func (l *Lock) WithLock(ctx context.Context, fn func() error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer func() { _ = l.Release() }()
	return fn()
}

// Held reports whether this handle currently holds the lock.
func (l *Lock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acquired
}

// tryCreateMarker atomically creates the marker file with the holder's
// pid and acquisition time. Fails with an IsExist error when contended.
func (l *Lock) tryCreateMarker() error {
	f, err := os.OpenFile(l.markerPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, constants.FilePerm) //#nosec G304 -- path is constructed internally
	if err != nil {
		return err
	}

	m := marker{PID: os.Getpid(), AcquiredAt: l.clk.Now().UTC()}
	data, err := json.Marshal(m)
	if err == nil {
		_, err = f.Write(data)
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(l.markerPath)
		return fmt.Errorf("failed to write lock marker: %w", err)
	}
	return nil
}

// recoverStale removes the marker when its holder is no longer alive or the
// marker is older than the stale age. Recovery is silent; a racing removal
// by another process is fine because the next create attempt is atomic.
func (l *Lock) recoverStale() {
	data, err := os.ReadFile(l.markerPath) //#nosec G304 -- path is constructed internally
	if err != nil {
		// Marker vanished between poll iterations; nothing to recover.
		return
	}

	var m marker
	if err := json.Unmarshal(data, &m); err != nil {
		// Unparsable marker, likely a partial write from a crashed holder.
		// Treat as stale once past the stale age based on file mtime.
		if info, statErr := os.Stat(l.markerPath); statErr == nil {
			if l.clk.Now().Sub(info.ModTime()) > l.staleAge {
				_ = os.Remove(l.markerPath)
			}
		}
		return
	}

	if !processAlive(m.PID) || l.clk.Now().Sub(m.AcquiredAt) > l.staleAge {
		_ = os.Remove(l.markerPath)
	}
}

// processAlive probes the pid with signal 0. EPERM still means the process
// exists; only ESRCH proves it is gone.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return err == unix.EPERM
}
