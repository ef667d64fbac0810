// Package pattern loads project pattern definitions and verifies compliance.
//
// Patterns live in patterns.json under the context directory, with rules.json
// as a legacy fallback name. A project without either file simply has no
// patterns; that is not an error.
package pattern

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/aiflow-dev/aiflow/internal/constants"
	"github.com/aiflow-dev/aiflow/internal/domain"
)

// Provider loads pattern definitions from the context directory.
type Provider struct {
	contextDir string
	logger     zerolog.Logger
}

// NewProvider creates a Provider for the given context directory.
func NewProvider(contextDir string, logger zerolog.Logger) *Provider {
	return &Provider{contextDir: contextDir, logger: logger}
}

// patternsDocument is the on-disk wrapper around the pattern list.
type patternsDocument struct {
	Patterns []domain.Pattern `json:"patterns"`
}

// Load reads the pattern definitions. The primary file name wins; the
// legacy name is only consulted when the primary is absent.
func (p *Provider) Load(ctx context.Context) ([]domain.Pattern, error) {
	// Check for cancellation at entry
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	for _, name := range []string{constants.PatternsFileName, constants.RulesFileName} {
		path := filepath.Join(p.contextDir, name)
		data, err := os.ReadFile(path) //#nosec G304 -- path is constructed internally
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		patterns, err := parsePatterns(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		return patterns, nil
	}
	return nil, nil
}

// parsePatterns accepts both the wrapped document form and a bare array.
func parsePatterns(data []byte) ([]domain.Pattern, error) {
	var doc patternsDocument
	if err := json.Unmarshal(data, &doc); err == nil && doc.Patterns != nil {
		return doc.Patterns, nil
	}
	var bare []domain.Pattern
	if err := json.Unmarshal(data, &bare); err != nil {
		return nil, err
	}
	return bare, nil
}

// Find returns the pattern with the given id, or nil.
func Find(patterns []domain.Pattern, id string) *domain.Pattern {
	for i := range patterns {
		if patterns[i].ID == id {
			return &patterns[i]
		}
	}
	return nil
}

// ForState returns the patterns relevant in the given state, preserving
// definition order.
func ForState(patterns []domain.Pattern, state constants.WorkflowState) []domain.Pattern {
	var out []domain.Pattern
	for _, pat := range patterns {
		if pat.RelevantIn(state) {
			out = append(out, pat)
		}
	}
	return out
}

// MandatoryForState returns the patterns mandatory in the given state.
func MandatoryForState(patterns []domain.Pattern, state constants.WorkflowState) []domain.Pattern {
	var out []domain.Pattern
	for _, pat := range patterns {
		if pat.MandatoryIn(state) {
			out = append(out, pat)
		}
	}
	return out
}
