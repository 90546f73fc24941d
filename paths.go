package main

import (
	"fmt"
	"os"
	"os/exec"
	"path"
)

// DirResolver looks for executables in a single directory and falls back to $PATH.
type DirResolver struct {
	Dir string
}

func (r *DirResolver) candidates(spec BenchmarkSpec) []string {
	// Android bundles native executables as lib<name>.so inside nativeLibraryDir
	return []string{
		path.Join(r.Dir, spec.Executable),
		path.Join(r.Dir, fmt.Sprintf("lib%v.so", spec.Executable)),
	}
}

func (r *DirResolver) ExecutablePath(spec BenchmarkSpec) (string, error) {
	candidates := r.candidates(spec)
	if r.Dir != "" {
		for _, candidate := range candidates {
			info, err := os.Stat(candidate)
			if err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
	}
	if found, err := exec.LookPath(spec.Executable); err == nil {
		Logger.Debugf("resolved %v from PATH: %v", spec.Name, found)
		return found, nil
	}
	if r.Dir == "" {
		return spec.Executable, nil
	}
	// launch will fail on this path and report it
	return candidates[0], nil
}
