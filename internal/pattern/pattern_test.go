package pattern

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiflow-dev/aiflow/internal/clock"
	"github.com/aiflow-dev/aiflow/internal/constants"
	"github.com/aiflow-dev/aiflow/internal/domain"
)

const patternsJSON = `{
  "patterns": [
    {
      "id": "design-doc",
      "title": "Design document",
      "applicableStates": ["DESIGNING"],
      "requiredStates": ["DESIGNING"],
      "validation": {"type": "file_exists", "rule": "docs/design/**/*.md"}
    },
    {
      "id": "lint-clean",
      "title": "Lint passes",
      "applicableStates": ["REVIEWING"],
      "requiredStates": [],
      "validation": {"type": "command_run", "rule": "true"}
    }
  ]
}`

func TestProvider_LoadPrimaryFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, constants.PatternsFileName), []byte(patternsJSON), 0o600))

	p := NewProvider(dir, zerolog.Nop())
	patterns, err := p.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, patterns, 2)
	assert.Equal(t, "design-doc", patterns[0].ID)
}

func TestProvider_FallsBackToRulesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, constants.RulesFileName), []byte(patternsJSON), 0o600))

	p := NewProvider(dir, zerolog.Nop())
	patterns, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, patterns, 2)
}

func TestProvider_PrimaryWinsOverFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, constants.PatternsFileName), []byte(`{"patterns":[]}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, constants.RulesFileName), []byte(patternsJSON), 0o600))

	p := NewProvider(dir, zerolog.Nop())
	patterns, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, patterns)
}

func TestProvider_MissingFilesMeansNoPatterns(t *testing.T) {
	p := NewProvider(t.TempDir(), zerolog.Nop())
	patterns, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, patterns)
}

func TestProvider_BareArrayForm(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, constants.PatternsFileName),
		[]byte(`[{"id":"p1","validation":{"type":"custom","rule":""}}]`), 0o600))

	p := NewProvider(dir, zerolog.Nop())
	patterns, err := p.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, "p1", patterns[0].ID)
}

func TestForState(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, constants.PatternsFileName), []byte(patternsJSON), 0o600))
	p := NewProvider(dir, zerolog.Nop())
	patterns, err := p.Load(context.Background())
	require.NoError(t, err)

	designing := ForState(patterns, constants.StateDesigning)
	require.Len(t, designing, 1)
	assert.Equal(t, "design-doc", designing[0].ID)

	mandatory := MandatoryForState(patterns, constants.StateReviewing)
	assert.Empty(t, mandatory)
}

type stubRunner struct {
	exitCode int
	output   string
	calls    int
}

func (r *stubRunner) Run(_ context.Context, _ string) (int, string, error) {
	r.calls++
	return r.exitCode, r.output, nil
}

func fileExistsPattern(rule string) *domain.Pattern {
	return &domain.Pattern{
		ID:         "file-check",
		Validation: domain.PatternValidation{Type: constants.ValidationFileExists, Rule: rule},
	}
}

func TestVerify_FileExists(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs", "design"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "design", "plan.md"), []byte("# plan"), 0o600))

	v := NewVerifier(root, nil, nil)
	result, err := v.Verify(context.Background(), fileExistsPattern("docs/design/**/*.md"))
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.True(t, result.Blocking, "file_exists defaults to error severity")
}

func TestVerify_FileMissing(t *testing.T) {
	v := NewVerifier(t.TempDir(), nil, nil)
	result, err := v.Verify(context.Background(), fileExistsPattern("docs/design/**/*.md"))
	require.NoError(t, err)
	assert.False(t, result.Passed)
	assert.Equal(t, constants.SeverityError, result.Severity)
	assert.NotEmpty(t, result.Message)
}

func TestVerify_CommandRun(t *testing.T) {
	runner := &stubRunner{exitCode: 1, output: "2 problems"}
	v := NewVerifier(t.TempDir(), runner, nil)

	p := &domain.Pattern{
		ID:         "lint",
		Validation: domain.PatternValidation{Type: constants.ValidationCommandRun, Rule: "lint"},
	}
	result, err := v.Verify(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, result.Passed)
	assert.False(t, result.Blocking, "command_run defaults to warning severity")
	assert.Equal(t, "2 problems", result.Output)
}

func TestVerify_ExplicitSeverityWins(t *testing.T) {
	runner := &stubRunner{exitCode: 1}
	v := NewVerifier(t.TempDir(), runner, nil)

	p := &domain.Pattern{
		ID: "lint",
		Validation: domain.PatternValidation{
			Type:     constants.ValidationCommandRun,
			Rule:     "lint",
			Severity: constants.SeverityError,
		},
	}
	result, err := v.Verify(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, result.Blocking)
}

func TestVerify_ManualTypes(t *testing.T) {
	v := NewVerifier(t.TempDir(), nil, nil)
	for _, vt := range []constants.ValidationType{constants.ValidationCodeCheck, constants.ValidationCustom} {
		p := &domain.Pattern{
			ID:         "manual-" + string(vt),
			Action:     "verify by inspection",
			Validation: domain.PatternValidation{Type: vt, Rule: "whatever"},
		}
		result, err := v.Verify(context.Background(), p)
		require.NoError(t, err)
		assert.True(t, result.Manual)
		assert.False(t, result.Passed)
		assert.False(t, result.Blocking)
	}
}

func TestVerify_MemoisesWithinTTL(t *testing.T) {
	clk := clock.NewMock(time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC))
	runner := &stubRunner{exitCode: 0}
	v := NewVerifier(t.TempDir(), runner, clk)

	p := &domain.Pattern{
		ID:         "lint",
		Validation: domain.PatternValidation{Type: constants.ValidationCommandRun, Rule: "lint"},
	}

	first, err := v.Verify(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := v.Verify(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, runner.calls)

	clk.Advance(constants.PatternVerifyTTL + time.Second)
	third, err := v.Verify(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, 2, runner.calls)
}

func TestVerify_FileChangeInvalidatesMemo(t *testing.T) {
	root := t.TempDir()
	clk := clock.NewMock(time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC))
	v := NewVerifier(root, nil, clk)
	p := fileExistsPattern("plan.md")

	first, err := v.Verify(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, first.Passed)

	require.NoError(t, os.WriteFile(filepath.Join(root, "plan.md"), []byte("# plan"), 0o600))

	second, err := v.Verify(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, second.Cached, "new file changes the fingerprint")
	assert.True(t, second.Passed)
}

func TestMarkVerified(t *testing.T) {
	v := NewVerifier(t.TempDir(), nil, nil)
	p := &domain.Pattern{
		ID:         "manual",
		Validation: domain.PatternValidation{Type: constants.ValidationCustom, Rule: ""},
	}

	marked := v.MarkVerified(p)
	assert.True(t, marked.Passed)

	result, err := v.Verify(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.True(t, result.Cached)
}

func TestShellRunner(t *testing.T) {
	r := ShellRunner{Dir: t.TempDir()}

	code, out, err := r.Run(context.Background(), "echo hello && exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, code)
	assert.Contains(t, out, "hello")
}
