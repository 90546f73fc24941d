package main

import (
	"fmt"
	"strings"
)

type EventKind int

const (
	EventStarted EventKind = iota
	EventOutputLine
	EventDiagnosticLine
	EventFailed
	EventCompleted
	EventNote
	EventAllNotes
	EventError
)

var eventKindNames = map[EventKind]string{
	EventStarted:        "started",
	EventOutputLine:     "output",
	EventDiagnosticLine: "diagnostic",
	EventFailed:         "failed",
	EventCompleted:      "completed",
	EventNote:           "note",
	EventAllNotes:       "all_notes",
	EventError:          "error",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(k))
}

type Note struct {
	Benchmark string
	Text      string
}

// RunEvent is one step of a run. Only the fields relevant for the Kind are set.
type RunEvent struct {
	Kind      EventKind
	Benchmark string
	Text      string
	ExitCode  int
	Notes     []Note
	Err       error
}

func Started(benchmark string) RunEvent {
	return RunEvent{Kind: EventStarted, Benchmark: benchmark}
}

func OutputLine(benchmark string, text string) RunEvent {
	return RunEvent{Kind: EventOutputLine, Benchmark: benchmark, Text: text}
}

func DiagnosticLine(benchmark string, text string) RunEvent {
	return RunEvent{Kind: EventDiagnosticLine, Benchmark: benchmark, Text: text}
}

func Failed(benchmark string, exitCode int) RunEvent {
	return RunEvent{Kind: EventFailed, Benchmark: benchmark, ExitCode: exitCode}
}

func Completed(benchmark string, exitCode int) RunEvent {
	return RunEvent{Kind: EventCompleted, Benchmark: benchmark, ExitCode: exitCode}
}

func NoteLine(benchmark string, text string) RunEvent {
	return RunEvent{Kind: EventNote, Benchmark: benchmark, Text: text}
}

func AllNotes(notes []Note) RunEvent {
	return RunEvent{Kind: EventAllNotes, Notes: notes}
}

func ErrorEvent(benchmark string, err error) RunEvent {
	return RunEvent{Kind: EventError, Benchmark: benchmark, Err: err}
}

// Format renders the event the way the transcript shows it.
func (e RunEvent) Format() string {
	switch e.Kind {
	case EventStarted:
		return fmt.Sprintf("Starting benchmark %v\n\n", e.Benchmark)
	case EventOutputLine, EventDiagnosticLine:
		return e.Text + "\n"
	case EventFailed:
		return fmt.Sprintf("\nBenchmark %v exited with code %v\n", e.Benchmark, e.ExitCode)
	case EventCompleted:
		return fmt.Sprintf("\nCompleted benchmark %v\n\n", e.Benchmark)
	case EventNote:
		return fmt.Sprintf("Note: %v\n", e.Text)
	case EventAllNotes:
		var b strings.Builder
		b.WriteString("Notes:\n")
		for _, note := range e.Notes {
			fmt.Fprintf(&b, "- %v: %v\n", note.Benchmark, note.Text)
		}
		return b.String()
	case EventError:
		if e.Benchmark == "" {
			return fmt.Sprintf("Error: %v\n", e.Err)
		}
		return fmt.Sprintf("Error in benchmark %v: %v\n", e.Benchmark, e.Err)
	}
	return ""
}
