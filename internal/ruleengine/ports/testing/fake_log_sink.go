package testing

import (
	"sync"

	"github.com/hearthctl/ruleengine/internal/ruleengine/ports"
)

// LogSink is an in-memory ports.LogSink recording every logged record for
// test assertions, grounded on the teacher corpus's record-and-assert fakes.
type LogSink struct {
	mu      sync.Mutex
	records []LogRecord
}

// LogRecord is one recorded call to Logger.Log, tagged with the source it
// was registered under.
type LogRecord struct {
	Source string
	Fields map[string]any
}

func NewLogSink() *LogSink {
	return &LogSink{}
}

func (s *LogSink) Register(source string, fields ...string) ports.Logger {
	return &logger{sink: s, source: source}
}

func (s *LogSink) Records() []LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LogRecord(nil), s.records...)
}

type logger struct {
	sink   *LogSink
	source string
}

func (l *logger) Log(fields map[string]any) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.records = append(l.sink.records, LogRecord{Source: l.source, Fields: fields})
}
