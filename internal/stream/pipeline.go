// Package stream relays the three standard streams between the wrapper and
// its child.
//
// Stdin is tee'd into the log with a size cap, stdout is copied untouched and
// never inspected, and stderr is relayed and mirrored into the log. Every
// relay goroutine runs under a panic catcher, so a bug in a relay becomes a
// Fault the supervisor can act on instead of a crash.
package stream

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/Paintersrp/acpwrap/internal/logsink"
	"github.com/Paintersrp/acpwrap/internal/metrics"
)

const (
	// MirrorCap bounds how much of each stdin chunk is copied into the log.
	MirrorCap = 1024
	// TruncatedMarker is appended to mirrored stdin chunks longer than MirrorCap.
	TruncatedMarker = "...[truncated]"

	bufferSize = 32 * 1024
)

// Stream names.
const (
	Stdin  = metrics.StreamStdin
	Stdout = metrics.StreamStdout
	Stderr = metrics.StreamStderr
)

// Operations reported in an Error.
const (
	OpRead  = "read"
	OpWrite = "write"
)

// Error reports an I/O failure on one of the relayed streams.
type Error struct {
	Stream string
	Op     string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stream, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Fatal reports whether the failure leaves the child unreachable. Only a
// failed write into the child's stdin does.
func (e *Error) Fatal() bool {
	return e.Stream == Stdin && e.Op == OpWrite
}

// Fault is a panic recovered from a relay goroutine.
type Fault struct {
	Stream    string
	Recovered *panics.Recovered
}

func (f Fault) String() string {
	return fmt.Sprintf("panic in %s relay: %s", f.Stream, f.Recovered.String())
}

// Mirror records stream content in the durable log.
type Mirror interface {
	Mirror(tag string, data []byte)
}

// Endpoints are the child's ends of the standard streams as seen by the
// parent.
type Endpoints struct {
	Stdin  io.WriteCloser
	Stdout io.Reader
	Stderr io.Reader
}

// Config wires the parent's standard streams and logging into a Pipeline.
type Config struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Mirror Mirror
	Logger *slog.Logger
}

// Pipeline owns the relay goroutines for one child.
type Pipeline struct {
	cfg   Config
	child Endpoints

	errs   chan *Error
	faults chan Fault

	outputs conc.WaitGroup
	drained chan struct{}

	startOnce sync.Once
	stdinOnce sync.Once
	stdinErr  error
}

// New constructs a Pipeline. Nothing is relayed until Start is called.
func New(cfg Config, child Endpoints) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Mirror == nil {
		cfg.Mirror = nopMirror{}
	}
	if cfg.Stdout == nil {
		cfg.Stdout = io.Discard
	}
	if cfg.Stderr == nil {
		cfg.Stderr = io.Discard
	}
	return &Pipeline{
		cfg:     cfg,
		child:   child,
		errs:    make(chan *Error, 3),
		faults:  make(chan Fault, 3),
		drained: make(chan struct{}),
	}
}

// Start launches the relays. Calling it again has no effect.
func (p *Pipeline) Start() {
	p.startOnce.Do(func() {
		if p.cfg.Stdin != nil && p.child.Stdin != nil {
			// The parent's stdin may block forever, so this relay is not
			// waited on.
			go p.guard(Stdin, p.relayStdin)
		}
		if p.child.Stdout != nil {
			p.outputs.Go(func() { p.guard(Stdout, p.relayStdout) })
		}
		if p.child.Stderr != nil {
			p.outputs.Go(func() { p.guard(Stderr, p.relayStderr) })
		}
		go func() {
			p.outputs.Wait()
			close(p.drained)
		}()
	})
}

// Errors delivers stream failures. Each relay reports at most once.
func (p *Pipeline) Errors() <-chan *Error {
	return p.errs
}

// Faults delivers panics recovered from the relays.
func (p *Pipeline) Faults() <-chan Fault {
	return p.faults
}

// Drained is closed once the child's stdout and stderr reached EOF or failed.
func (p *Pipeline) Drained() <-chan struct{} {
	return p.drained
}

// CloseStdin closes the child's stdin once.
func (p *Pipeline) CloseStdin() error {
	p.stdinOnce.Do(func() {
		if p.child.Stdin != nil {
			p.stdinErr = p.child.Stdin.Close()
		}
	})
	return p.stdinErr
}

func (p *Pipeline) guard(stream string, fn func()) {
	var pc panics.Catcher
	pc.Try(fn)
	if r := pc.Recovered(); r != nil {
		p.faults <- Fault{Stream: stream, Recovered: r}
	}
}

func (p *Pipeline) report(err *Error) {
	p.errs <- err
}

func (p *Pipeline) relayStdin() {
	logger := p.cfg.Logger
	buf := make([]byte, bufferSize)
	for {
		n, err := p.cfg.Stdin.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			p.mirrorStdin(chunk)
			if _, werr := p.child.Stdin.Write(chunk); werr != nil {
				_ = p.CloseStdin()
				logger.Error(fmt.Sprintf("Child STDIN write error: %v", werr))
				p.report(&Error{Stream: Stdin, Op: OpWrite, Err: werr})
				return
			}
			metrics.AddStreamBytes(Stdin, n)
		}
		if errors.Is(err, io.EOF) {
			// The child keeps its stdin open so the session can continue.
			logger.Info("STDIN ended by parent - child session continuing")
			return
		}
		if err != nil {
			_ = p.CloseStdin()
			logger.Error(fmt.Sprintf("STDIN error: %v", err))
			p.report(&Error{Stream: Stdin, Op: OpRead, Err: err})
			return
		}
	}
}

func (p *Pipeline) mirrorStdin(chunk []byte) {
	if len(chunk) <= MirrorCap {
		p.cfg.Mirror.Mirror(logsink.TagStdin, chunk)
		return
	}
	mirrored := make([]byte, 0, MirrorCap+len(TruncatedMarker))
	mirrored = append(mirrored, chunk[:MirrorCap]...)
	mirrored = append(mirrored, TruncatedMarker...)
	p.cfg.Mirror.Mirror(logsink.TagStdin, mirrored)
	metrics.IncStdinTruncated()
}

func (p *Pipeline) relayStdout() {
	out := &countingWriter{w: p.cfg.Stdout, stream: Stdout}
	_, err := io.Copy(out, p.child.Stdout)
	if err != nil && out.err != nil {
		p.cfg.Logger.Error(fmt.Sprintf("Parent STDOUT write error: %v", err))
		p.report(&Error{Stream: Stdout, Op: OpWrite, Err: err})
		// Keep draining so the child never blocks on a full pipe.
		_, err = io.Copy(io.Discard, p.child.Stdout)
		if err == nil {
			p.cfg.Logger.Info("Child stdout ended")
		}
		return
	}
	if err != nil {
		p.cfg.Logger.Error(fmt.Sprintf("Child STDOUT error: %v", err))
		p.report(&Error{Stream: Stdout, Op: OpRead, Err: err})
		return
	}
	p.cfg.Logger.Info("Child stdout ended")
}

func (p *Pipeline) relayStderr() {
	logger := p.cfg.Logger
	buf := make([]byte, bufferSize)
	parentOK := true
	for {
		n, err := p.child.Stderr.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if parentOK {
				if _, werr := p.cfg.Stderr.Write(chunk); werr != nil {
					// Keep draining so the child never blocks on a full pipe.
					parentOK = false
					logger.Warn(fmt.Sprintf("Parent STDERR write error: %v", werr))
				}
			}
			p.cfg.Mirror.Mirror(logsink.TagStderr, chunk)
			metrics.AddStreamBytes(Stderr, n)
		}
		if errors.Is(err, io.EOF) {
			logger.Debug("Child stderr ended")
			return
		}
		if err != nil {
			logger.Error(fmt.Sprintf("Child STDERR error: %v", err))
			p.report(&Error{Stream: Stderr, Op: OpRead, Err: err})
			return
		}
	}
}

type countingWriter struct {
	w      io.Writer
	stream string
	err    error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	metrics.AddStreamBytes(c.stream, n)
	if err != nil {
		c.err = err
	}
	return n, err
}

type nopMirror struct{}

func (nopMirror) Mirror(string, []byte) {}
