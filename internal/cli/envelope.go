package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// Envelope status values. External agents branch on these strings.
const (
	// StatusSuccess marks a successful envelope.
	StatusSuccess = "success"
	// StatusError marks a failed envelope.
	StatusError = "error"
)

// Next-action types. External agents dispatch on these strings.
const (
	// ActionCommand suggests running a CLI invocation.
	ActionCommand = "command"
	// ActionReadFile suggests reading a derived file.
	ActionReadFile = "read_file"
	// ActionCheckState suggests re-inspecting the workflow state.
	ActionCheckState = "check_state"
)

// Response is the JSON envelope emitted by commands in json/silent mode.
// External agents parse this shape; the field names are load-bearing.
type Response struct {
	// Status is "success" or "error".
	Status string `json:"status"`

	// Data is the command-specific payload.
	Data any `json:"data,omitempty"`

	// NextActions suggests what the caller should do next.
	NextActions []NextAction `json:"nextActions,omitempty"`

	// Error is the error message when Status is "error".
	Error string `json:"error,omitempty"`

	// ExitCode mirrors the process exit code.
	ExitCode int `json:"exitCode"`
}

// NextAction is one suggested follow-up for the caller.
type NextAction struct {
	// Type classifies the suggestion (command, read_file, check_state).
	Type string `json:"type"`

	// Action is the concrete suggestion, usually a CLI invocation.
	Action string `json:"action"`

	// Reason explains why the action is suggested.
	Reason string `json:"reason,omitempty"`

	// Required marks actions that block progress until taken.
	Required bool `json:"required"`
}

// OKResponse builds a success envelope.
func OKResponse(data any, next ...NextAction) *Response {
	return &Response{Status: StatusSuccess, Data: data, NextActions: next, ExitCode: ExitSuccess}
}

// ErrorResponse builds an error envelope from an error.
func ErrorResponse(err error) *Response {
	return &Response{Status: StatusError, Error: err.Error(), ExitCode: ExitCodeForError(err)}
}

// WriteResponse renders the envelope. Silent mode wins over output format
// and emits compact single-line JSON; json mode emits indented JSON.
func WriteResponse(w io.Writer, flags *GlobalFlags, resp *Response) error {
	enc := json.NewEncoder(w)
	if !flags.Silent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(resp)
}

// MachineOutput reports whether the command should emit the JSON envelope
// instead of human-readable text.
func MachineOutput(flags *GlobalFlags) bool {
	return flags.Silent || flags.Output == OutputJSON
}

// Emit writes either the envelope or the provided human-readable rendering.
func Emit(w io.Writer, flags *GlobalFlags, resp *Response, text string) error {
	if MachineOutput(flags) {
		return WriteResponse(w, flags, resp)
	}
	_, err := fmt.Fprint(w, text)
	return err
}
