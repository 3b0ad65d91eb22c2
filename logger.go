package nfs4

import (
	"context"
	"log/slog"
	"os"
)

// Logger is the structured logging interface this client calls into.
// Applications can supply their own implementation to integrate with an
// existing logging pipeline.
type Logger interface {
	Debug(msg string, fields ...LogField)
	Info(msg string, fields ...LogField)
	Warn(msg string, fields ...LogField)
	Error(msg string, fields ...LogField)
}

// LogField is a structured logging key-value pair.
type LogField struct {
	Key   string
	Value interface{}
}

// SlogLogger is a Logger backed by log/slog. A Client uses it only when it
// is supplied through WithLogger; the default Logger discards everything.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger builds a SlogLogger writing text-formatted records to
// os.Stderr at the given level ("debug", "info", "warn", or "error";
// anything else defaults to "info").
func NewSlogLogger(level string) *SlogLogger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(level)})
	return &SlogLogger{logger: slog.New(handler)}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *SlogLogger) Debug(msg string, fields ...LogField) { l.log(slog.LevelDebug, msg, fields...) }
func (l *SlogLogger) Info(msg string, fields ...LogField)  { l.log(slog.LevelInfo, msg, fields...) }
func (l *SlogLogger) Warn(msg string, fields ...LogField)  { l.log(slog.LevelWarn, msg, fields...) }
func (l *SlogLogger) Error(msg string, fields ...LogField) { l.log(slog.LevelError, msg, fields...) }

func (l *SlogLogger) log(level slog.Level, msg string, fields ...LogField) {
	if l == nil || l.logger == nil {
		return
	}
	attrs := make([]slog.Attr, 0, len(fields))
	for _, field := range fields {
		attrs = append(attrs, slog.Any(field.Key, field.Value))
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// noopLogger discards everything; it's the Client default when no Logger
// is configured.
type noopLogger struct{}

func (n *noopLogger) Debug(msg string, fields ...LogField) {}
func (n *noopLogger) Info(msg string, fields ...LogField)  {}
func (n *noopLogger) Warn(msg string, fields ...LogField)  {}
func (n *noopLogger) Error(msg string, fields ...LogField) {}

// NewNoopLogger returns a Logger that discards all messages.
func NewNoopLogger() Logger {
	return &noopLogger{}
}
