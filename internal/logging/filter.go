// Package logging keeps secrets out of the aiflow log file. The log
// captures command output from pattern verification and review item
// execution, which can echo whatever the project's tooling prints, so
// everything written to disk passes through a redacting writer.
package logging

import (
	"io"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// RedactedValue replaces any detected secret in log output.
const RedactedValue = "[REDACTED]"

// secretPatterns match common credential formats that could leak into
// logs via captured command output or environment dumps.
var secretPatterns = []*regexp.Regexp{ //nolint:gochecknoglobals // compiled once
	// Anthropic API keys
	regexp.MustCompile(`sk-ant-api[a-zA-Z0-9_-]+`),
	// OpenAI API keys
	regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),
	// GitHub tokens (ghp_, gho_, ghu_, ghs_, ghr_)
	regexp.MustCompile(`gh[pousr]_[a-zA-Z0-9]{20,}`),
	// key/value assignments of api keys
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*["']?([a-zA-Z0-9_-]{16,})["']?`),
	// bearer tokens
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_-]{20,}`),
	// authorization headers
	regexp.MustCompile(`(?i)authorization\s*[:=]\s*["']?[a-zA-Z0-9_-]{20,}["']?`),
	// generic secret assignments
	regexp.MustCompile(`(?i)(secret|password|credential|passwd|pwd)\s*[:=]\s*["']?[^\s"']{8,}["']?`),
	// private key blocks
	regexp.MustCompile(`(?i)-----BEGIN[A-Z\s]+PRIVATE KEY-----`),
	// long base64 token assignments
	regexp.MustCompile(`(?i)(token|auth)\s*[:=]\s*["']?[a-zA-Z0-9+/=]{32,}["']?`),
}

// secretFieldNames are structured-log field names whose values are
// always redacted regardless of content.
var secretFieldNames = map[string]struct{}{ //nolint:gochecknoglobals // lookup table
	"api_key":           {},
	"apikey":            {},
	"api-key":           {},
	"auth_token":        {},
	"auth-token":        {},
	"password":          {},
	"passwd":            {},
	"secret":            {},
	"credential":        {},
	"credentials":       {},
	"private_key":       {},
	"private-key":       {},
	"access_token":      {},
	"access-token":      {},
	"refresh_token":     {},
	"refresh-token":     {},
	"bearer":            {},
	"authorization":     {},
	"anthropic_api_key": {},
	"github_token":      {},
	"openai_api_key":    {},
}

// secretWords are matched against compound field names on separator
// boundaries, so db_password is sensitive while secretariat is not.
var secretWords = []string{ //nolint:gochecknoglobals // lookup table
	"password", "passwd", "secret", "credential", "token", "apikey", "key",
}

// ContainsSensitiveData reports whether s matches any known secret
// pattern.
func ContainsSensitiveData(s string) bool {
	for _, p := range secretPatterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// FilterSensitiveValue redacts every secret pattern match in value.
func FilterSensitiveValue(value string) string {
	out := value
	for _, p := range secretPatterns {
		out = p.ReplaceAllString(out, RedactedValue)
	}
	return out
}

// IsSensitiveFieldName reports whether a structured-log field name
// denotes a secret, either exactly or as a separator-delimited word in
// a compound name.
func IsSensitiveFieldName(name string) bool {
	lower := strings.ToLower(name)
	if _, ok := secretFieldNames[lower]; ok {
		return true
	}
	for _, word := range secretWords {
		if hasDelimitedWord(lower, word) {
			return true
		}
	}
	return false
}

// hasDelimitedWord reports whether word appears in name bounded by
// underscore or dash separators (or the ends of name). The whole-name
// case is left to the exact table so plain substrings never match.
func hasDelimitedWord(name, word string) bool {
	if word == "" || name == word {
		return false
	}
	idx := 0
	for {
		i := strings.Index(name[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		leftOK := start == 0 || name[start-1] == '_' || name[start-1] == '-'
		rightOK := end == len(name) || name[end] == '_' || name[end] == '-'
		if leftOK && rightOK {
			return true
		}
		idx = start + 1
		if idx >= len(name) {
			return false
		}
	}
}

// RedactIfSensitive returns RedactedValue when the field name denotes
// a secret, otherwise filters the value for embedded secret patterns.
func RedactIfSensitive(fieldName, value string) string {
	if IsSensitiveFieldName(fieldName) {
		return RedactedValue
	}
	return FilterSensitiveValue(value)
}

// SensitiveDataHook flags log events whose message matches a secret
// pattern. Zerolog hooks cannot rewrite the message, so actual
// redaction happens in FilteringWriter on the file path; the hook adds
// a marker field so flagged entries are easy to audit.
type SensitiveDataHook struct{}

// NewSensitiveDataHook returns a hook for use with zerolog.Logger.Hook.
func NewSensitiveDataHook() *SensitiveDataHook {
	return &SensitiveDataHook{}
}

// Run implements zerolog.Hook.
func (h *SensitiveDataHook) Run(e *zerolog.Event, _ zerolog.Level, msg string) {
	if ContainsSensitiveData(msg) {
		e.Bool("contains_filtered_data", true)
	}
}

// FilteringWriter redacts secret patterns from everything written
// through it. The log file writer is wrapped in one so secrets never
// reach disk even when a call site forgets to filter.
type FilteringWriter struct {
	w io.Writer
}

// NewFilteringWriter wraps w with secret redaction.
func NewFilteringWriter(w io.Writer) *FilteringWriter {
	return &FilteringWriter{w: w}
}

// Write implements io.Writer. It reports the original length so the
// caller does not observe a short write when redaction shrinks the
// payload.
func (fw *FilteringWriter) Write(p []byte) (int, error) {
	if _, err := fw.w.Write([]byte(FilterSensitiveValue(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
