// Package exec provides an interface for running worker subprocesses.
package exec

import (
	"context"
)

// Command describes a subprocess invocation.
type Command struct {
	// Name is the executable.
	Name string
	// Args are passed to the executable.
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env is appended to the parent environment.
	Env []string
	// Stdin is written to the process's standard input.
	Stdin []byte
}

// Result is the captured output of a finished process.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// CommandRunner defines the interface for running external commands.
// This abstraction allows faking subprocess workers in tests.
type CommandRunner interface {
	// Run executes the command and waits for it to exit.
	// A non-zero exit is reported in Result.ExitCode with a nil error; the
	// error is reserved for failures to start or wait on the process,
	// including context cancellation.
	Run(ctx context.Context, cmd Command) (Result, error)

	// LookPath reports whether the executable can be found.
	LookPath(name string) error
}
