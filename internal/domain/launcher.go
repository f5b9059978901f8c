package domain

import (
	"context"
	"time"
)

// LaunchSpec describes one invocation of the simulation engine.
type LaunchSpec struct {
	Name        string   // Label used in logs and spans
	Binary      string   // Executable path or name on PATH
	Args        []string // Command-line arguments
	Dir         string   // Working directory of the process
	Env         []string // Extra KEY=VALUE entries appended to the inherited environment
	CapturePath string   // File receiving stdout and stderr
}

// ProcessResult is the exit signal of a launched engine. It says nothing
// about whether the simulation itself completed.
type ProcessResult struct {
	ExitCode int
	Err      error
	Duration time.Duration
}

// Process is a running engine.
type Process interface {
	// Done is closed once the process has exited.
	Done() <-chan struct{}
	// Result returns the exit signal. Only valid after Done is closed.
	Result() ProcessResult
}

// Launcher starts engine processes. Launch must not block until the process exits.
type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) (Process, error)
}
