package events

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Sink receives events. Implementations must be safe for concurrent use and
// must not block for long: they are called from the sweep workers.
type Sink interface {
	Emit(e *Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(e *Event)

// Emit calls f(e).
func (f SinkFunc) Emit(e *Event) { f(e) }

// Discard drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) Emit(*Event) {}

// Multi fans an event out to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	var out multi
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return Discard
	}
	return out
}

type multi []Sink

func (m multi) Emit(e *Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []*Event
}

// Emit records e.
func (r *Recorder) Emit(e *Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Event(nil), r.events...)
}

// OfType returns the recorded events of type t.
func (r *Recorder) OfType(t EventType) []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// LogSink renders events as structured log lines.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink returns a sink writing to logger. Per-prefix query events are
// logged at debug level so that normal runs only show progress.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Emit logs e.
func (s *LogSink) Emit(e *Event) {
	level := zapcore.InfoLevel
	switch e.Severity {
	case SeverityWarning:
		level = zapcore.WarnLevel
	case SeverityError:
		level = zapcore.ErrorLevel
	}
	if e.Type == EventTypeQueryCompleted {
		level = zapcore.DebugLevel
	}

	ce := s.logger.Check(level, e.Message)
	if ce == nil {
		return
	}
	fields := make([]zap.Field, 0, len(e.Data)+3)
	fields = append(fields, zap.String("event", string(e.Type)))
	if e.RunID != "" {
		fields = append(fields, zap.String("run_id", e.RunID))
	}
	if e.Prefix != "" {
		fields = append(fields, zap.String("prefix", e.Prefix))
	}
	for k, v := range e.Data {
		fields = append(fields, zap.Any(k, v))
	}
	ce.Write(fields...)
}
