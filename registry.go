package main

import (
	"fmt"
	"slices"
)

const TargetAll = "all"

type BenchmarkSpec struct {
	Name       string
	Executable string
	Args       []string
	Note       string
	Summary    string
	Kind       string
	Source     string
}

var defaultBenchmarks = []BenchmarkSpec{
	{
		Name:       "hackbench",
		Executable: "hackbench",
		Args:       []string{"-s", "2000", "-l", "2000"},
		Note:       "lower time is better, the result depends heavily on the number of online CPUs",
		Summary:    "Stress test for the scheduler: groups of senders and receivers exchange messages over sockets",
		Kind:       "scheduler throughput",
		Source:     "https://git.kernel.org/pub/scm/utils/rt-tests/rt-tests.git/tree/src/hackbench/hackbench.c",
	},
	{
		Name:       "pipebench",
		Executable: "pipebench",
		Note:       "lower usecs/op is better, every op is a full round trip between two tasks over a pipe",
		Summary:    "Ping-pong of a single integer between two tasks connected by pipes",
		Kind:       "scheduler latency",
		Source:     "https://github.com/iamlooper/BenchSuite/blob/libs/src/pipebench.c",
	},
	{
		Name:       "callbench",
		Executable: "callbench",
		Note:       "lower ns per call is better, vDSO results are expected to beat direct syscalls",
		Summary:    "Measures clock_gettime through the vDSO and direct syscalls, plus small file reads",
		Kind:       "syscalls and I/O speed",
		Source:     "https://github.com/kdrag0n/callbench/blob/master/callbench.c",
	},
}

// Registry is an immutable, ordered set of benchmarks.
type Registry struct {
	specs []BenchmarkSpec
	index map[string]int
}

func NewRegistry(specs ...BenchmarkSpec) (*Registry, error) {
	if len(specs) == 0 {
		return nil, ErrNoBenchmarks
	}
	registry := &Registry{
		specs: make([]BenchmarkSpec, 0, len(specs)),
		index: make(map[string]int, len(specs)),
	}
	for _, spec := range specs {
		if spec.Name == TargetAll {
			return nil, fmt.Errorf("%w: %v", ErrReservedName, spec.Name)
		}
		if _, ok := registry.index[spec.Name]; ok {
			return nil, fmt.Errorf("%w: %v", ErrDuplicate, spec.Name)
		}
		if spec.Executable == "" {
			spec.Executable = spec.Name
		}
		spec.Args = slices.Clone(spec.Args)
		registry.index[spec.Name] = len(registry.specs)
		registry.specs = append(registry.specs, spec)
	}
	return registry, nil
}

func DefaultRegistry() *Registry {
	registry, err := NewRegistry(defaultBenchmarks...)
	if err != nil {
		panic(fmt.Errorf("invalid default registry: %w", err))
	}
	return registry
}

func (r *Registry) Resolve(name string) (BenchmarkSpec, error) {
	i, ok := r.index[name]
	if !ok {
		return BenchmarkSpec{}, fmt.Errorf("%w: %v", ErrNotFound, name)
	}
	return r.specs[i].clone(), nil
}

// All returns the benchmarks in registration order.
func (r *Registry) All() []BenchmarkSpec {
	specs := make([]BenchmarkSpec, 0, len(r.specs))
	for _, spec := range r.specs {
		specs = append(specs, spec.clone())
	}
	return specs
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.specs))
	for _, spec := range r.specs {
		names = append(names, spec.Name)
	}
	return names
}

// Expand turns a run target into the ordered list of benchmarks to execute.
func (r *Registry) Expand(target string) ([]BenchmarkSpec, error) {
	if target == TargetAll {
		return r.All(), nil
	}
	spec, err := r.Resolve(target)
	if err != nil {
		return nil, err
	}
	return []BenchmarkSpec{spec}, nil
}

func (s BenchmarkSpec) clone() BenchmarkSpec {
	s.Args = slices.Clone(s.Args)
	return s
}
