package main

import (
	"context"
	"io"
	"strings"
)

// TextSink accumulates the transcript of a run and optionally mirrors it to a
// writer. It must be owned by a single goroutine.
type TextSink struct {
	out      io.Writer
	text     strings.Builder
	failed   []string
	errors   []error
	finished bool
}

func NewTextSink(out io.Writer) *TextSink {
	return &TextSink{out: out}
}

func (s *TextSink) Emit(event RunEvent) error {
	switch event.Kind {
	case EventFailed:
		s.failed = append(s.failed, event.Benchmark)
	case EventError:
		s.errors = append(s.errors, event.Err)
	case EventNote, EventAllNotes:
		s.finished = true
	}
	chunk := event.Format()
	s.text.WriteString(chunk)
	if s.out != nil {
		if _, err := io.WriteString(s.out, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (s *TextSink) Text() string { return s.text.String() }

// Failed lists benchmarks that exited with a non-zero code.
func (s *TextSink) Failed() []string { return s.failed }

func (s *TextSink) Errors() []error { return s.errors }

// Finished reports whether the run reached its notes.
func (s *TextSink) Finished() bool { return s.finished }

// ChannelSink hands events over to another goroutine.
type ChannelSink struct {
	ctx    context.Context
	events chan<- RunEvent
}

func NewChannelSink(ctx context.Context, events chan<- RunEvent) *ChannelSink {
	return &ChannelSink{ctx: ctx, events: events}
}

func (s *ChannelSink) Emit(event RunEvent) error {
	select {
	case s.events <- event:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

type MultiSink []Sink

func (m MultiSink) Emit(event RunEvent) error {
	for _, sink := range m {
		if err := sink.Emit(event); err != nil {
			return err
		}
	}
	return nil
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(event RunEvent) error

func (f SinkFunc) Emit(event RunEvent) error { return f(event) }
