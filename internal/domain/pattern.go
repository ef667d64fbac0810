package domain

import "github.com/aiflow-dev/aiflow/internal/constants"

// Pattern is a state-scoped rule with a validation kind and severity.
// Patterns drive both validation and checklist generation.
//
// A pattern is relevant in state S iff S is in ApplicableStates or
// RequiredStates; it is mandatory iff S is in RequiredStates.
type Pattern struct {
	// ID is the stable pattern identifier.
	ID string `json:"id"`

	// Title is the short human-readable title.
	Title string `json:"title"`

	// Description explains the pattern.
	Description string `json:"description"`

	// Action describes what the developer should do to comply.
	Action string `json:"action"`

	// ApplicableStates lists states where the pattern is suggested.
	ApplicableStates []constants.WorkflowState `json:"applicableStates"`

	// RequiredStates lists states where the pattern is mandatory.
	RequiredStates []constants.WorkflowState `json:"requiredStates"`

	// Validation describes how compliance is verified.
	Validation PatternValidation `json:"validation"`
}

// PatternValidation describes how a pattern is verified and how violations
// are classified.
type PatternValidation struct {
	// Type is the verification kind (file_exists, command_run, code_check, custom).
	Type constants.ValidationType `json:"type"`

	// Rule is the type-specific verification rule (a glob, a command, or a
	// textual check).
	Rule string `json:"rule"`

	// Message is shown when the verification fails.
	Message string `json:"message"`

	// Severity classifies the violation. Only error severity blocks the
	// aggregate validation result.
	Severity constants.Severity `json:"severity"`
}

// RelevantIn reports whether the pattern applies in the given state.
func (p *Pattern) RelevantIn(state constants.WorkflowState) bool {
	for _, s := range p.ApplicableStates {
		if s == state {
			return true
		}
	}
	return p.MandatoryIn(state)
}

// MandatoryIn reports whether the pattern is mandatory in the given state.
func (p *Pattern) MandatoryIn(state constants.WorkflowState) bool {
	for _, s := range p.RequiredStates {
		if s == state {
			return true
		}
	}
	return false
}

// Blocking reports whether a failed verification of this pattern should
// block the aggregate validation result. Only explicit error severity
// blocks; command_run, code_check, and custom checks default to warning
// severity when the pattern definition omits one (see EffectiveSeverity).
func (p *Pattern) Blocking() bool {
	return p.EffectiveSeverity() == constants.SeverityError
}

// EffectiveSeverity returns the declared severity, defaulting file_exists
// checks to error and every other validation type to warning when the
// pattern definition leaves severity empty.
func (p *Pattern) EffectiveSeverity() constants.Severity {
	if p.Validation.Severity != "" {
		return p.Validation.Severity
	}
	if p.Validation.Type == constants.ValidationFileExists {
		return constants.SeverityError
	}
	return constants.SeverityWarning
}
