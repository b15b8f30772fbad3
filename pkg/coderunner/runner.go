package coderunner

import (
	"context"
	"time"
)

// Runner executes one piece of submitted code against a single stdin and
// captures its output. Implementations must treat each call independently,
// a failed run never affects other runs.
type Runner interface {
	Run(ctx context.Context, req RunRequest) (RunResult, error)
}

// RunRequest describes one execution of submitted source code.
type RunRequest struct {
	Language string
	Source   string
	Stdin    string
	Timeout  time.Duration
}

// RunResult summarises one execution.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	TimedOut bool
}
