package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func collectLines(t *testing.T, process Process) ([]string, []string) {
	stdout, stderr := make([]string, 0), make([]string, 0)
	for {
		line, err := process.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return stdout, stderr
		}
		require.Nil(t, err)
		if line.Stderr {
			stderr = append(stderr, line.Text)
		} else {
			stdout = append(stdout, line.Text)
		}
	}
}

func TestExecRunnerStreamsLines(t *testing.T) {
	runner := &ExecRunner{}
	process, err := runner.Start(context.Background(), "/bin/sh", []string{"-c", "echo one; echo two; printf three"})
	require.Nil(t, err)

	stdout, stderr := collectLines(t, process)
	require.Equal(t, []string{"one", "two", "three"}, stdout)
	require.Empty(t, stderr)

	outcome, err := process.Wait()
	require.Nil(t, err)
	require.Equal(t, 0, outcome.ExitCode)
}

func TestExecRunnerExitCode(t *testing.T) {
	runner := &ExecRunner{}
	process, err := runner.Start(context.Background(), "/bin/sh", []string{"-c", "echo partial; exit 3"})
	require.Nil(t, err)

	stdout, _ := collectLines(t, process)
	require.Equal(t, []string{"partial"}, stdout)

	outcome, err := process.Wait()
	require.Nil(t, err)
	require.Equal(t, 3, outcome.ExitCode)
}

func TestExecRunnerStderr(t *testing.T) {
	script := "echo out; echo err >&2; echo out2"

	captured, err := (&ExecRunner{CaptureStderr: true}).Start(context.Background(), "/bin/sh", []string{"-c", script})
	require.Nil(t, err)
	stdout, stderr := collectLines(t, captured)
	require.Equal(t, []string{"out", "out2"}, stdout)
	require.Equal(t, []string{"err"}, stderr)
	_, err = captured.Wait()
	require.Nil(t, err)

	dropped, err := (&ExecRunner{}).Start(context.Background(), "/bin/sh", []string{"-c", script})
	require.Nil(t, err)
	stdout, stderr = collectLines(t, dropped)
	require.Equal(t, []string{"out", "out2"}, stdout)
	require.Empty(t, stderr)
	_, err = dropped.Wait()
	require.Nil(t, err)
}

func TestExecRunnerNoStdin(t *testing.T) {
	process, err := (&ExecRunner{}).Start(context.Background(), "/bin/sh", []string{"-c", "cat; echo done"})
	require.Nil(t, err)
	stdout, _ := collectLines(t, process)
	require.Equal(t, []string{"done"}, stdout)
	_, err = process.Wait()
	require.Nil(t, err)
}

func TestExecRunnerLaunchFailure(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "hackbench")
	_, err := (&ExecRunner{}).Start(context.Background(), missing, nil)
	require.True(t, IsLaunchError(err))

	notExecutable := filepath.Join(t.TempDir(), "pipebench")
	require.Nil(t, os.WriteFile(notExecutable, []byte("#!/bin/sh\necho hi\n"), 0o644))
	_, err = (&ExecRunner{}).Start(context.Background(), notExecutable, nil)
	require.True(t, IsLaunchError(err))
}

func TestExecRunnerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	process, err := (&ExecRunner{WaitDelay: time.Second}).Start(ctx, "/bin/sh", []string{"-c", "echo started; exec sleep 30"})
	require.Nil(t, err)

	line, err := process.Next(ctx)
	require.Nil(t, err)
	require.Equal(t, "started", line.Text)

	cancel()
	_, err = process.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)

	done := make(chan error, 1)
	go func() {
		_, err := process.Wait()
		done <- err
	}()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(10 * time.Second):
		t.Fatal("process was not terminated after cancellation")
	}
}

func TestExecRunnerWaitWithoutDraining(t *testing.T) {
	process, err := (&ExecRunner{}).Start(context.Background(), "/bin/sh", []string{"-c", "i=0; while [ $i -lt 1000 ]; do echo line $i; i=$((i+1)); done"})
	require.Nil(t, err)

	done := make(chan struct{})
	go func() {
		process.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("wait blocked on undrained output")
	}
}
