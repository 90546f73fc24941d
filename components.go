package main

import "context"

// Resolver maps a benchmark onto the executable bundled for it.
type Resolver interface {
	ExecutablePath(spec BenchmarkSpec) (string, error)
}

// Runner launches a single external program.
type Runner interface {
	Start(ctx context.Context, path string, args []string) (Process, error)
}

// Process is a running program. Next yields output lines in arrival order and
// returns io.EOF once the output is exhausted; Wait must be called after that.
type Process interface {
	Next(ctx context.Context) (Line, error)
	Wait() (ProcessOutcome, error)
}

// Sink receives run events in emission order.
type Sink interface {
	Emit(event RunEvent) error
}

type Line struct {
	Text   string
	Stderr bool
}

type ProcessOutcome struct {
	ExitCode int
}
