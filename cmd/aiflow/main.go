// Package main provides the entry point for the aiflow CLI.
package main

import (
	"context"
	"os"

	"github.com/aiflow-dev/aiflow/internal/cli"
)

// Build information set via ldflags.
//
//nolint:gochecknoglobals // Set at build time
var (
	version = ""
	commit  = ""
	date    = ""
)

func main() {
	ctx := context.Background()
	info := cli.BuildInfo{Version: version, Commit: commit, Date: date}

	err := cli.Execute(ctx, info)
	cli.CloseLogFile()
	os.Exit(cli.ExitCodeForError(err))
}
