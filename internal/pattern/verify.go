package pattern

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aiflow-dev/aiflow/internal/clock"
	"github.com/aiflow-dev/aiflow/internal/constants"
	"github.com/aiflow-dev/aiflow/internal/domain"
)

// Result is the outcome of verifying one pattern.
type Result struct {
	// PatternID identifies the verified pattern.
	PatternID string `json:"patternId"`

	// Passed is true when the check succeeded. Manual checks never pass
	// automatically.
	Passed bool `json:"passed"`

	// Manual is true when the pattern cannot be verified mechanically and
	// needs a human (or agent) confirmation.
	Manual bool `json:"manual"`

	// Severity is the effective severity of a failure.
	Severity constants.Severity `json:"severity"`

	// Blocking mirrors the pattern's blocking classification.
	Blocking bool `json:"blocking"`

	// Message explains a failure or the required manual step.
	Message string `json:"message,omitempty"`

	// Output is the captured command output for command_run checks.
	Output string `json:"output,omitempty"`

	// Cached is true when the result was served from the memo without
	// re-running the check.
	Cached bool `json:"cached"`
}

// memoEntry is one memoised verification.
type memoEntry struct {
	at          int64
	fingerprint string
	result      Result
}

// Verifier runs pattern checks with a short-lived memo so repeated status
// calls inside one session do not re-stat files or re-run commands.
type Verifier struct {
	projectRoot string
	runner      CommandRunner
	clk         clock.Clock

	mu   sync.Mutex
	memo map[string]memoEntry
}

// NewVerifier creates a Verifier rooted at the project directory.
func NewVerifier(projectRoot string, runner CommandRunner, clk clock.Clock) *Verifier {
	if runner == nil {
		runner = ShellRunner{Dir: projectRoot}
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Verifier{
		projectRoot: projectRoot,
		runner:      runner,
		clk:         clk,
		memo:        make(map[string]memoEntry),
	}
}

// Verify checks one pattern, serving a memoised result when the memo is
// fresh and the underlying file fingerprint is unchanged.
func (v *Verifier) Verify(ctx context.Context, p *domain.Pattern) (Result, error) {
	// Check for cancellation at entry
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	fingerprint := v.fingerprint(p)

	v.mu.Lock()
	if e, ok := v.memo[p.ID]; ok {
		fresh := v.clk.Now().UnixMilli()-e.at < constants.PatternVerifyTTL.Milliseconds()
		if fresh && e.fingerprint == fingerprint {
			v.mu.Unlock()
			cached := e.result
			cached.Cached = true
			return cached, nil
		}
	}
	v.mu.Unlock()

	result, err := v.check(ctx, p)
	if err != nil {
		return Result{}, err
	}

	v.mu.Lock()
	v.memo[p.ID] = memoEntry{at: v.clk.Now().UnixMilli(), fingerprint: fingerprint, result: result}
	v.mu.Unlock()
	return result, nil
}

// VerifyAll verifies every pattern in order.
func (v *Verifier) VerifyAll(ctx context.Context, patterns []domain.Pattern) ([]Result, error) {
	results := make([]Result, 0, len(patterns))
	for i := range patterns {
		r, err := v.Verify(ctx, &patterns[i])
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

// check performs the type-specific verification without consulting the memo.
func (v *Verifier) check(ctx context.Context, p *domain.Pattern) (Result, error) {
	base := Result{
		PatternID: p.ID,
		Severity:  p.EffectiveSeverity(),
		Blocking:  p.Blocking(),
	}

	switch p.Validation.Type {
	case constants.ValidationFileExists:
		matches, err := doublestar.FilepathGlob(filepath.Join(v.projectRoot, p.Validation.Rule))
		if err != nil {
			return Result{}, fmt.Errorf("invalid file pattern %q: %w", p.Validation.Rule, err)
		}
		base.Passed = len(matches) > 0
		if !base.Passed {
			base.Message = failureMessage(p, fmt.Sprintf("no file matches %q", p.Validation.Rule))
		}
		return base, nil

	case constants.ValidationCommandRun:
		code, output, err := v.runner.Run(ctx, p.Validation.Rule)
		if err != nil {
			return Result{}, fmt.Errorf("failed to run %q: %w", p.Validation.Rule, err)
		}
		base.Passed = code == 0
		base.Output = strings.TrimSpace(output)
		if !base.Passed {
			base.Message = failureMessage(p, fmt.Sprintf("command exited with status %d", code))
		}
		return base, nil

	case constants.ValidationCodeCheck, constants.ValidationCustom:
		// Not mechanically verifiable; surfaced for manual confirmation.
		base.Manual = true
		base.Message = manualMessage(p)
		return base, nil

	default:
		return Result{}, fmt.Errorf("unknown validation type %q for pattern %s", p.Validation.Type, p.ID)
	}
}

// MarkVerified records a manual confirmation for the pattern so subsequent
// checks within the memo window report it as passed.
func (v *Verifier) MarkVerified(p *domain.Pattern) Result {
	result := Result{
		PatternID: p.ID,
		Passed:    true,
		Manual:    true,
		Severity:  p.EffectiveSeverity(),
		Blocking:  p.Blocking(),
	}
	v.mu.Lock()
	v.memo[p.ID] = memoEntry{at: v.clk.Now().UnixMilli(), fingerprint: v.fingerprint(p), result: result}
	v.mu.Unlock()
	return result
}

// fingerprint captures the on-disk state a memoised result depends on.
// For file checks that is the newest match's mtime and the match count; a
// changed file invalidates the memo even inside the TTL window.
func (v *Verifier) fingerprint(p *domain.Pattern) string {
	if p.Validation.Type != constants.ValidationFileExists {
		return string(p.Validation.Type)
	}
	matches, err := doublestar.FilepathGlob(filepath.Join(v.projectRoot, p.Validation.Rule))
	if err != nil {
		return "invalid"
	}
	var newest int64
	for _, m := range matches {
		if info, statErr := os.Stat(m); statErr == nil {
			if mt := info.ModTime().UnixMilli(); mt > newest {
				newest = mt
			}
		}
	}
	return fmt.Sprintf("%d:%d", len(matches), newest)
}

// failureMessage prefers the pattern's own message over the generic one.
func failureMessage(p *domain.Pattern, fallback string) string {
	if p.Validation.Message != "" {
		return p.Validation.Message
	}
	return fallback
}

// manualMessage describes what a human has to confirm.
func manualMessage(p *domain.Pattern) string {
	if p.Validation.Message != "" {
		return p.Validation.Message
	}
	if p.Action != "" {
		return p.Action
	}
	return fmt.Sprintf("manually confirm pattern %s", p.ID)
}
