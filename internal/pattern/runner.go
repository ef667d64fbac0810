package pattern

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// commandTimeout caps a single validation command run.
const commandTimeout = 60 * time.Second

// CommandRunner executes a validation command and reports its exit code and
// combined output. Implemented by ShellRunner in production and stubbed in
// tests.
type CommandRunner interface {
	Run(ctx context.Context, command string) (exitCode int, output string, err error)
}

// ShellRunner runs commands through the shell so rules can use pipes and
// environment expansion, matching how developers write them.
type ShellRunner struct {
	// Dir is the working directory for commands, usually the project root.
	Dir string
}

// Run executes the command with sh -c. A non-zero exit status is reported
// through the exit code, not the error; the error is reserved for failures
// to run the command at all.
func (r ShellRunner) Run(ctx context.Context, command string) (int, string, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command) //#nosec G204 -- rules are project-authored configuration
	cmd.Dir = r.Dir

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), buf.String(), nil
		}
		return -1, buf.String(), err
	}
	return 0, buf.String(), nil
}
