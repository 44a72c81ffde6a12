package logsink

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// ErrClosed is returned by writes to a sink after Close.
var ErrClosed = errors.New("log sink closed")

// Sink is the durable destination for log records. Implementations must be
// safe for concurrent use and Close must be idempotent.
type Sink interface {
	io.Writer
	Close() error
	// Path reports where records are persisted. It is empty for sinks that
	// discard writes.
	Path() string
}

type fileSink struct {
	mu     sync.Mutex
	file   afero.File
	path   string
	closed bool
}

func (s *fileSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	return s.file.Write(p)
}

func (s *fileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}

func (s *fileSink) Path() string {
	return s.path
}

// NopSink satisfies Sink and discards every write. It is used when no durable
// destination could be opened.
type NopSink struct{}

func (NopSink) Write(p []byte) (int, error) { return len(p), nil }
func (NopSink) Close() error                { return nil }
func (NopSink) Path() string                { return "" }

// Open tries each candidate path in order, creating parent directories as
// needed, and returns a sink for the first one that can be opened for append.
// Failures are reported to report. When every candidate fails the returned
// sink is a NopSink.
func Open(fs afero.Fs, candidates []string, report io.Writer) Sink {
	if report == nil {
		report = io.Discard
	}
	for _, path := range candidates {
		if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			fmt.Fprintf(report, "[ERROR] Failed to create log directory for %s: %v\n", path, err)
			continue
		}
		f, err := fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			fmt.Fprintf(report, "[ERROR] Failed to create log file %s: %v\n", path, err)
			continue
		}
		return &fileSink{file: f, path: path}
	}
	return NopSink{}
}
