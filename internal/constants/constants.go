// Package constants defines shared constants for the aiflow workflow engine.
//
// This package MUST NOT import any other internal packages.
package constants

import "time"

// Goal validation limits (characters, after trimming).
const (
	// GoalMinLength is the minimum accepted goal length.
	GoalMinLength = 10

	// GoalMaxLength is the maximum accepted goal length.
	GoalMaxLength = 500
)

// File lock behaviour.
const (
	// LockTimeout is the maximum duration to wait for acquiring the queue lock.
	LockTimeout = 5 * time.Second

	// LockPollInterval is the delay between lock acquisition attempts.
	LockPollInterval = 50 * time.Millisecond

	// LockStaleAge is the marker age beyond which a lock is considered stale
	// regardless of holder liveness.
	LockStaleAge = 30 * time.Second
)

// Retention and caching.
const (
	// MaxBackups is the number of rolling legacy-file backups retained.
	MaxBackups = 5

	// ArchiveHorizonDays is the default age after which DONE tasks are archived.
	ArchiveHorizonDays = 30

	// PatternVerifyTTL is how long a pattern verification result is memoised.
	PatternVerifyTTL = 5 * time.Minute

	// ValidationCacheTTL is how long cached aggregate validation results
	// may be reused by validate --use-cache.
	ValidationCacheTTL = 30 * time.Minute
)

// Transient IO retry policy. Retries use linear back-off:
// attempt n waits n * IORetryBaseDelay.
const (
	// IORetryAttempts is the number of retries for transient IO errors.
	IORetryAttempts = 3

	// IORetryBaseDelay is the base delay unit for linear back-off.
	IORetryBaseDelay = 100 * time.Millisecond

	// CrossProcessRetryDelay is the single short wait used to ride out a
	// cross-process write-then-read race when loading the active task.
	CrossProcessRetryDelay = 10 * time.Millisecond
)

// CLI log rotation settings.
const (
	// LogMaxSizeMB is the size at which the CLI log rotates.
	LogMaxSizeMB = 10

	// LogMaxBackups is the number of rotated CLI log files retained.
	LogMaxBackups = 3

	// LogMaxAgeDays is the age after which rotated CLI logs are removed.
	LogMaxAgeDays = 30

	// LogCompress enables compression of rotated CLI logs.
	LogCompress = true
)

// Directory and file permission constants.
const (
	// DirPerm is the permission mode for engine-created directories.
	DirPerm = 0o750

	// FilePerm is the permission mode for engine-created files.
	FilePerm = 0o600
)
