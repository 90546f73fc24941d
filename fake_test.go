package main

import (
	"context"
	"io"
	"path"
	"sync"
	"sync/atomic"
	"time"
)

type fakeScript struct {
	lines    []Line
	exitCode int
	startErr error
	delay    time.Duration
}

type fakeCall struct {
	path string
	args []string
}

// fakeRunner plays scripted output keyed by executable name and tracks how
// many processes are alive at the same time.
type fakeRunner struct {
	scripts map[string]fakeScript

	mu    sync.Mutex
	calls []fakeCall

	active    atomic.Int32
	maxActive atomic.Int32
}

func (r *fakeRunner) Start(ctx context.Context, executable string, args []string) (Process, error) {
	script := r.scripts[path.Base(executable)]
	r.mu.Lock()
	r.calls = append(r.calls, fakeCall{path: executable, args: args})
	r.mu.Unlock()
	if script.startErr != nil {
		return nil, &LaunchError{Path: executable, Err: script.startErr}
	}
	active := r.active.Add(1)
	for {
		current := r.maxActive.Load()
		if active <= current || r.maxActive.CompareAndSwap(current, active) {
			break
		}
	}
	return &fakeProcess{runner: r, script: script}, nil
}

func (r *fakeRunner) Calls() []fakeCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]fakeCall(nil), r.calls...)
}

type fakeProcess struct {
	runner *fakeRunner
	script fakeScript
	next   int
	waited bool
}

func (p *fakeProcess) Next(ctx context.Context) (Line, error) {
	if err := ctx.Err(); err != nil {
		return Line{}, err
	}
	if p.script.delay > 0 {
		select {
		case <-time.After(p.script.delay):
		case <-ctx.Done():
			return Line{}, ctx.Err()
		}
	}
	if p.next >= len(p.script.lines) {
		return Line{}, io.EOF
	}
	line := p.script.lines[p.next]
	p.next++
	return line, nil
}

func (p *fakeProcess) Wait() (ProcessOutcome, error) {
	if !p.waited {
		p.waited = true
		p.runner.active.Add(-1)
	}
	return ProcessOutcome{ExitCode: p.script.exitCode}, nil
}

type staticResolver struct{}

func (staticResolver) ExecutablePath(spec BenchmarkSpec) (string, error) {
	return path.Join("/opt/benchsuite", spec.Executable), nil
}

type recordingSink struct {
	events []RunEvent
}

func (s *recordingSink) Emit(event RunEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Kinds() []EventKind {
	kinds := make([]EventKind, 0, len(s.events))
	for _, event := range s.events {
		kinds = append(kinds, event.Kind)
	}
	return kinds
}

func defaultScripts() map[string]fakeScript {
	return map[string]fakeScript{
		"hackbench": {lines: []Line{{Text: "Running in process mode with 10 groups"}, {Text: "Time: 1.234"}}},
		"pipebench": {lines: []Line{{Text: "Avg: 5.2 usecs/op"}}},
		"callbench": {lines: []Line{{Text: "syscall: 120 ns"}, {Text: "vdso: 20 ns"}, {Text: "read: 900 ns"}}},
	}
}

func newFakeSequencer(runner *fakeRunner) *Sequencer {
	return &Sequencer{
		Registry: DefaultRegistry(),
		Resolver: staticResolver{},
		Runner:   runner,
	}
}
