package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

type RunRequest struct {
	Target string
}

// Sequencer runs the benchmarks of a request one after another. A benchmark is
// started only after the previous process has exited.
type Sequencer struct {
	Registry *Registry
	Resolver Resolver
	Runner   Runner
	// ContinueOnLaunchFailure skips benchmarks that cannot be launched instead of aborting.
	ContinueOnLaunchFailure bool
	// Timeout limits a single benchmark; zero means no limit.
	Timeout time.Duration
}

type sinkError struct{ err error }

func (e *sinkError) Error() string { return fmt.Sprintf("sink failed: %v", e.err) }
func (e *sinkError) Unwrap() error { return e.err }

func emit(sink Sink, event RunEvent) error {
	if err := sink.Emit(event); err != nil {
		return &sinkError{err: err}
	}
	return nil
}

func (s *Sequencer) Run(ctx context.Context, request RunRequest, sink Sink) error {
	specs, err := s.Registry.Expand(request.Target)
	if err != nil {
		Logger.Errorf("unable to expand run target %v: %v", request.Target, err)
		if sinkErr := emit(sink, ErrorEvent(request.Target, err)); sinkErr != nil {
			return errors.Join(err, sinkErr)
		}
		return err
	}

	Logger.Infof("running %v benchmarks for target %v", len(specs), request.Target)
	for _, spec := range specs {
		err := s.runBenchmark(ctx, spec, sink)
		if err == nil {
			continue
		}
		var sinkErr *sinkError
		if s.ContinueOnLaunchFailure && IsLaunchError(err) && !errors.As(err, &sinkErr) && ctx.Err() == nil {
			Logger.Warnf("skip benchmark %v: %v", spec.Name, err)
			continue
		}
		return err
	}

	if request.Target == TargetAll {
		notes := make([]Note, 0, len(specs))
		for _, spec := range specs {
			notes = append(notes, Note{Benchmark: spec.Name, Text: spec.Note})
		}
		return emit(sink, AllNotes(notes))
	}
	spec := specs[0]
	return emit(sink, NoteLine(spec.Name, spec.Note))
}

func (s *Sequencer) runBenchmark(ctx context.Context, spec BenchmarkSpec, sink Sink) error {
	if err := emit(sink, Started(spec.Name)); err != nil {
		return err
	}

	fail := func(err error) error {
		Logger.Errorf("benchmark %v failed: %v", spec.Name, err)
		if sinkErr := emit(sink, ErrorEvent(spec.Name, err)); sinkErr != nil {
			return errors.Join(err, sinkErr)
		}
		return err
	}

	path, err := s.Resolver.ExecutablePath(spec)
	if err != nil {
		return fail(&LaunchError{Path: spec.Executable, Err: err})
	}

	runCtx := ctx
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	Logger.Infof("running benchmark %v: %v %v", spec.Name, path, spec.Args)
	start := time.Now()
	process, err := s.Runner.Start(runCtx, path, spec.Args)
	if err != nil {
		return fail(err)
	}

	lines := 0
	for {
		line, err := process.Next(runCtx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			process.Wait()
			return fail(err)
		}
		event := OutputLine(spec.Name, line.Text)
		if line.Stderr {
			event = DiagnosticLine(spec.Name, line.Text)
		}
		if err := emit(sink, event); err != nil {
			process.Wait()
			return err
		}
		lines++
	}

	outcome, err := process.Wait()
	if err != nil {
		return fail(err)
	}
	Logger.Infof("finished benchmark %v in %v: exit code %v, %v lines", spec.Name, time.Since(start), outcome.ExitCode, lines)

	if outcome.ExitCode != 0 {
		if err := emit(sink, Failed(spec.Name, outcome.ExitCode)); err != nil {
			return err
		}
	}
	return emit(sink, Completed(spec.Name, outcome.ExitCode))
}
