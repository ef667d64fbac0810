package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aiflow-dev/aiflow/internal/clock"
	"github.com/aiflow-dev/aiflow/internal/constants"
	aferrors "github.com/aiflow-dev/aiflow/internal/errors"
	"github.com/aiflow-dev/aiflow/internal/fsutil"
)

// CachedResult is the persisted validation outcome. External agents read
// cursorVerified to decide whether the enforcement rule has been confirmed
// for the current session.
type CachedResult struct {
	// Timestamp is when the result was produced.
	Timestamp time.Time `json:"timestamp"`

	// TaskID is the task the result belongs to.
	TaskID string `json:"taskId"`

	// CommitHash optionally pins the result to a commit.
	CommitHash string `json:"commitHash,omitempty"`

	// Overall is the aggregate validation outcome.
	Overall bool `json:"overall"`

	// CursorVerified records per-rule manual confirmations.
	CursorVerified map[string]CursorVerification `json:"cursorVerified,omitempty"`

	// Report is the full validation report the result was derived from.
	Report *Report `json:"report,omitempty"`
}

// CursorVerification is one cached manual rule confirmation.
type CursorVerification struct {
	// VerifiedAt is when the rule was confirmed.
	VerifiedAt time.Time `json:"verifiedAt"`

	// Notes optionally records how the confirmation was established.
	Notes string `json:"notes,omitempty"`
}

// Cache persists validation results under the context directory with a
// freshness window so repeated validate calls can skip re-verification.
type Cache struct {
	contextDir string
	clk        clock.Clock
}

// NewCache creates a Cache rooted at the context directory.
func NewCache(contextDir string, clk clock.Clock) *Cache {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Cache{contextDir: contextDir, clk: clk}
}

// Path returns the cache file path.
func (c *Cache) Path() string {
	return filepath.Join(c.contextDir, constants.ValidationCacheFileName)
}

// Load reads the cached result, nil when absent. An unparsable cache file
// is treated as absent; the cache is always safe to regenerate.
func (c *Cache) Load(ctx context.Context) (*CachedResult, error) {
	// Check for cancellation at entry
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	data, err := os.ReadFile(c.Path()) //#nosec G304 -- path is constructed internally
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read validation cache: %w", err)
	}

	var cached CachedResult
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, nil
	}
	return &cached, nil
}

// Fresh returns the cached result when it belongs to the given task and is
// inside the freshness window. Returns ErrCacheStale otherwise.
func (c *Cache) Fresh(ctx context.Context, taskID string) (*CachedResult, error) {
	cached, err := c.Load(ctx)
	if err != nil {
		return nil, err
	}
	if cached == nil {
		return nil, fmt.Errorf("no cached validation result: %w", aferrors.ErrCacheStale)
	}
	if cached.TaskID != taskID {
		return nil, fmt.Errorf("cached result is for task %s: %w", cached.TaskID, aferrors.ErrCacheStale)
	}
	if c.clk.Now().Sub(cached.Timestamp) > constants.ValidationCacheTTL {
		return nil, fmt.Errorf("cached result from %s: %w", cached.Timestamp.Format(time.RFC3339), aferrors.ErrCacheStale)
	}
	return cached, nil
}

// Save writes the result atomically, stamping it with the current time.
func (c *Cache) Save(ctx context.Context, result *CachedResult) error {
	// Check for cancellation at entry
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result.Timestamp = c.clk.Now().UTC()
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal validation cache: %w", err)
	}

	if err := os.MkdirAll(c.contextDir, constants.DirPerm); err != nil {
		return fmt.Errorf("failed to create context directory: %w", err)
	}
	if err := fsutil.AtomicWrite(c.Path(), data); err != nil {
		return fmt.Errorf("failed to write validation cache: %w", err)
	}
	return nil
}

// MarkCursorVerified records a manual rule confirmation on the cached
// result for the task, creating the cache entry when missing.
func (c *Cache) MarkCursorVerified(ctx context.Context, taskID, ruleID, notes string) error {
	cached, err := c.Load(ctx)
	if err != nil {
		return err
	}
	if cached == nil || cached.TaskID != taskID {
		cached = &CachedResult{TaskID: taskID}
	}
	if cached.CursorVerified == nil {
		cached.CursorVerified = make(map[string]CursorVerification)
	}
	cached.CursorVerified[ruleID] = CursorVerification{
		VerifiedAt: c.clk.Now().UTC(),
		Notes:      notes,
	}
	return c.Save(ctx, cached)
}
