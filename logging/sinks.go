package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// ConsoleSink writes human-readable lines to an io.Writer.
type ConsoleSink struct {
	w io.Writer
}

// NewConsoleSink returns a sink that formats events as plain text lines.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w}
}

func (s *ConsoleSink) Write(ev Event) error {
	_, err := fmt.Fprintf(s.w, "[%s] %s %s: %v\n", ev.Category, severityLabel(ev.Severity), ev.Message, ev.Fields)
	return err
}

func (s *ConsoleSink) Close(context.Context) error { return nil }

func severityLabel(s Severity) string {
	switch s {
	case SeverityDebug:
		return "DEBUG"
	case SeverityInfo:
		return "INFO"
	case SeverityWarn:
		return "WARN"
	case SeverityError:
		return "ERROR"
	default:
		return "?"
	}
}

// JSONSink writes newline-delimited JSON events to an io.Writer.
type JSONSink struct {
	w   io.Writer
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONSink returns a sink that writes one JSON object per event.
func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{w: w, enc: json.NewEncoder(w)}
}

func (s *JSONSink) Write(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(ev)
}

func (s *JSONSink) Close(context.Context) error { return nil }

// MemorySink buffers events in memory; intended for tests.
type MemorySink struct {
	mu     sync.Mutex
	Events []Event
}

// NewMemorySink returns an in-memory sink for assertions in tests.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, ev)
	return nil
}

func (s *MemorySink) Close(context.Context) error { return nil }

// Snapshot returns a copy of the events recorded so far.
func (s *MemorySink) Snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.Events))
	copy(out, s.Events)
	return out
}
