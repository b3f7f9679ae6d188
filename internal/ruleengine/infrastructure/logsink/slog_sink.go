// Package logsink adapts ports.LogSink (§6.3) onto log/slog, the logging
// library the teacher corpus uses throughout.
package logsink

import (
	"log/slog"

	"github.com/hearthctl/ruleengine/internal/ruleengine/ports"
)

// SlogSink registers loggers that emit one slog record per Log call, tagged
// with the registering source.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Register(source string, fields ...string) ports.Logger {
	return &sourceLogger{logger: s.logger.With("source", source)}
}

type sourceLogger struct {
	logger *slog.Logger
}

func (l *sourceLogger) Log(fields map[string]any) {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	l.logger.Info("rule engine event", args...)
}
