package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Sink consumes validated per-tick records. Implementations own their output
// stream and are the only writer to it.
type Sink interface {
	Write(*Record) error
	Close() error
}

// JSONLSink appends one compact JSON line per record. It enforces the
// schema: invalid records and non-increasing tick indices are rejected
// without emitting anything.
type JSONLSink struct {
	w        io.WriteCloser
	lastTick int
}

// NewJSONLSink opens (or creates) an append-only log file at path.
func NewJSONLSink(path string) (*JSONLSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &JSONLSink{w: f}, nil
}

// NewRotatingJSONLSink writes through a size-rotated file.
func NewRotatingJSONLSink(path string, maxSizeMB, maxBackups int) *JSONLSink {
	return &JSONLSink{w: &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}}
}

// NewWriterSink wraps an arbitrary stream, mainly for tests.
func NewWriterSink(w io.WriteCloser) *JSONLSink {
	return &JSONLSink{w: w}
}

func (s *JSONLSink) Write(rec *Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("telemetry record rejected: %w", err)
	}
	if rec.TickIndex <= s.lastTick {
		return fmt.Errorf("telemetry record rejected: tick_index %d is not after %d", rec.TickIndex, s.lastTick)
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if _, err := s.w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	s.lastTick = rec.TickIndex
	return nil
}

func (s *JSONLSink) Close() error {
	return s.w.Close()
}

// MultiSink fans records out to several sinks; a write fails on the first
// sink error, a close releases every sink regardless.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Write(rec *Record) error {
	for _, s := range m.sinks {
		if err := s.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiSink) Close() error {
	var err error
	for _, s := range m.sinks {
		err = multierr.Append(err, s.Close())
	}
	return err
}
