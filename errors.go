package main

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("benchmark not found")
	ErrNoBenchmarks = errors.New("no benchmarks registered")
	ErrReservedName = errors.New("benchmark name is reserved")
	ErrDuplicate    = errors.New("duplicate benchmark name")
)

// LaunchError reports that an executable could not be started at all.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %v: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

func IsLaunchError(err error) bool {
	var launchErr *LaunchError
	return errors.As(err, &launchErr)
}
