package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os/exec"
	"sync"
	"time"
)

const (
	defaultWaitDelay = 5 * time.Second
	maxLineSize      = 1024 * 1024
)

// ExecRunner starts benchmarks as child processes with no standard input.
type ExecRunner struct {
	CaptureStderr bool
	// WaitDelay bounds how long output pipes are kept open after the child exits or is killed.
	WaitDelay time.Duration
}

type execProcess struct {
	ctx     context.Context
	cmd     *exec.Cmd
	lines   chan Line
	abandon chan struct{}
	exited  chan struct{}
	once    sync.Once
	wg      sync.WaitGroup

	errMu   sync.Mutex
	readErr error
	waitErr error
}

func (r *ExecRunner) Start(ctx context.Context, path string, args []string) (Process, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = defaultWaitDelay
	}

	stdoutR, stdoutW := io.Pipe()
	cmd.Stdout = stdoutW
	var stderrR *io.PipeReader
	var stderrW *io.PipeWriter
	if r.CaptureStderr {
		stderrR, stderrW = io.Pipe()
		cmd.Stderr = stderrW
	}

	if err := cmd.Start(); err != nil {
		stdoutR.Close()
		if stderrR != nil {
			stderrR.Close()
		}
		return nil, &LaunchError{Path: path, Err: err}
	}
	Logger.Debugf("started %v %v with pid %v", path, args, cmd.Process.Pid)

	p := &execProcess{
		ctx:     ctx,
		cmd:     cmd,
		lines:   make(chan Line, 64),
		abandon: make(chan struct{}),
		exited:  make(chan struct{}),
	}
	go func() {
		p.waitErr = cmd.Wait()
		stdoutW.Close()
		if stderrW != nil {
			stderrW.Close()
		}
		close(p.exited)
	}()

	p.wg.Add(1)
	go p.read(stdoutR, false)
	if stderrR != nil {
		p.wg.Add(1)
		go p.read(stderrR, true)
	}
	go func() {
		p.wg.Wait()
		close(p.lines)
	}()
	return p, nil
}

func (p *execProcess) read(reader *io.PipeReader, stderr bool) {
	defer p.wg.Done()
	// unblocks the copying side of exec.Cmd if we stop early
	defer reader.Close()

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		select {
		case p.lines <- Line{Text: scanner.Text(), Stderr: stderr}:
		case <-p.abandon:
			return
		case <-p.ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		p.errMu.Lock()
		if p.readErr == nil {
			p.readErr = err
		}
		p.errMu.Unlock()
	}
}

func (p *execProcess) Next(ctx context.Context) (Line, error) {
	if err := ctx.Err(); err != nil {
		return Line{}, err
	}
	select {
	case <-ctx.Done():
		return Line{}, ctx.Err()
	case line, ok := <-p.lines:
		if ok {
			return line, nil
		}
		if err := p.ctx.Err(); err != nil {
			return Line{}, err
		}
		p.errMu.Lock()
		defer p.errMu.Unlock()
		if p.readErr != nil {
			return Line{}, p.readErr
		}
		return Line{}, io.EOF
	}
}

// Wait discards whatever output was not consumed and blocks until the child exits.
func (p *execProcess) Wait() (ProcessOutcome, error) {
	p.once.Do(func() { close(p.abandon) })
	<-p.exited

	outcome := ProcessOutcome{}
	if p.cmd.ProcessState != nil {
		outcome.ExitCode = p.cmd.ProcessState.ExitCode()
	}
	if err := p.ctx.Err(); err != nil {
		return outcome, err
	}

	err := p.waitErr
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return outcome, nil
	case errors.As(err, &exitErr):
		outcome.ExitCode = exitErr.ExitCode()
		return outcome, nil
	case errors.Is(err, exec.ErrWaitDelay):
		Logger.Warnf("output of %v was still open after exit, closed forcibly", p.cmd.Path)
		return outcome, nil
	}
	return outcome, err
}
