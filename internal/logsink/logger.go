// Package logsink implements the wrapper's append-only, sanitizing log.
//
// Records are written through log/slog so every component logs with the
// standard API, while the Handler enforces the line format, credential
// masking, and the split between the durable sink (everything) and the echo to
// stderr (filtered by verbosity). When no durable sink can be opened the
// Logger runs on a NopSink with the same behaviour minus persistence.
package logsink

import (
	"context"
	"log/slog"
)

// Logger couples a slog.Logger with the handler that owns the durable sink.
type Logger struct {
	*slog.Logger
	handler *Handler
}

// New returns a Logger writing to sink.
func New(sink Sink, opts Options) *Logger {
	h := NewHandler(sink, opts)
	return &Logger{Logger: slog.New(h), handler: h}
}

// Nop returns a Logger that neither persists nor echoes.
func Nop() *Logger {
	return New(NopSink{}, Options{})
}

// Fatal logs at LevelFatal. It does not exit.
func (l *Logger) Fatal(msg string, args ...any) {
	l.Log(context.Background(), LevelFatal, msg, args...)
}

// Mirror appends tagged stream content to the durable sink.
func (l *Logger) Mirror(tag string, data []byte) {
	l.handler.Mirror(tag, data)
}

// Close closes the durable sink. It is safe to call more than once.
func (l *Logger) Close() error {
	return l.handler.Close()
}

// Path reports the durable destination, or "" for a NopSink.
func (l *Logger) Path() string {
	return l.handler.Path()
}
