// Package supervisor runs one child process for the lifetime of the wrapper.
//
// A single event loop owns every lifecycle decision. Child exit, termination
// signals, failed liveness probes, fatal stream errors and recovered panics
// all funnel into it, and the first of them moves the supervisor into
// ShuttingDown. Cleanup then runs exactly once: stop the probe, close the
// durable log, and terminate the child's process group, escalating to
// SIGKILL after the grace period.
package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"

	"github.com/Paintersrp/acpwrap/internal/logsink"
	"github.com/Paintersrp/acpwrap/internal/metrics"
	"github.com/Paintersrp/acpwrap/internal/probe"
	"github.com/Paintersrp/acpwrap/internal/resolve"
	"github.com/Paintersrp/acpwrap/internal/runtime/process"
	"github.com/Paintersrp/acpwrap/internal/stream"
)

const (
	// GracePeriod is the delay between SIGTERM and SIGKILL.
	GracePeriod = 5 * time.Second

	drainTimeout = 2 * time.Second
	reapTimeout  = 2 * time.Second
)

// Resolver locates and re-checks the child executable.
type Resolver interface {
	Resolve(name string) (resolve.Executable, error)
	Verify(exe resolve.Executable) error
}

// Config describes the child and the wrapper's own streams.
type Config struct {
	Name     string
	Binary   string
	ModeFlag string
	Args     []string

	Resolver Resolver
	Logger   *logsink.Logger

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Signals replaces the OS signal subscription when non-nil.
	Signals <-chan os.Signal
}

// child is the part of process.Handle that cleanup drives.
type child interface {
	Live() bool
	Terminate() error
	Kill() error
}

// Supervisor owns the lifecycle of one child process.
type Supervisor struct {
	cfg     Config
	logger  *logsink.Logger
	log     *slog.Logger
	session string

	state   atomic.Int32
	trigger atomic.Value

	gracePeriod   time.Duration
	probeInterval time.Duration
	start         func(process.Spec) (*process.Handle, error)
	newProber     func(probe.Target) probe.Prober

	mu          sync.Mutex
	handle      *process.Handle
	child       child
	exe         resolve.Executable
	startedAt   time.Time
	cancelProbe context.CancelFunc
	killTimer   *time.Timer

	cleanupOnce sync.Once
}

// New constructs a Supervisor. Run starts it.
func New(cfg Config) *Supervisor {
	logger := cfg.Logger
	if logger == nil {
		logger = logsink.Nop()
	}
	session := uuid.NewString()
	return &Supervisor{
		cfg:           cfg,
		logger:        logger,
		log:           logger.With(slog.String("session", session)),
		session:       session,
		gracePeriod:   GracePeriod,
		probeInterval: probe.DefaultInterval,
		start:         process.Start,
		newProber: func(t probe.Target) probe.Prober {
			return probe.NewLiveness(t)
		},
	}
}

// Session returns the identifier attached to every record of this run.
func (s *Supervisor) Session() string {
	return s.session
}

// State reports the current lifecycle phase.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Run resolves, spawns and supervises the child until it ends or a shutdown
// trigger fires. The returned value is the process exit code.
func (s *Supervisor) Run(ctx context.Context) int {
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.state.Store(int32(StateTerminated))
	ignoreBrokenPipe()

	signals := s.cfg.Signals
	if signals == nil {
		ch := make(chan os.Signal, 2)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(ch)
		signals = ch
	}

	s.log.Info(fmt.Sprintf("Starting with args: %s", encodeArgs(s.cfg.Args)))

	exe, err := s.cfg.Resolver.Resolve(s.cfg.Binary)
	if err != nil {
		return s.abort(fmt.Sprintf("ERROR: %v", err))
	}
	s.log.Info(fmt.Sprintf("Using %s binary at: %s", s.cfg.Binary, exe.Path))

	if err := s.cfg.Resolver.Verify(exe); err != nil {
		return s.abort(fmt.Sprintf("ERROR: %v", err))
	}
	if !s.state.CompareAndSwap(int32(StateInit), int32(StateSpawning)) {
		return s.abort("ERROR: supervisor already started")
	}

	args := make([]string, 0, len(s.cfg.Args)+1)
	args = append(args, s.cfg.ModeFlag)
	args = append(args, s.cfg.Args...)
	s.log.Info(fmt.Sprintf("Spawning %s with args: %s", s.cfg.Binary, encodeArgs(args)))

	h, err := s.start(process.Spec{Path: exe.Path, Args: args})
	if err != nil {
		return s.abort(fmt.Sprintf("Failed to spawn %s process: %v", s.cfg.Binary, err))
	}

	probeCtx, cancelProbe := context.WithCancel(ctx)
	s.mu.Lock()
	s.handle = h
	s.child = h
	s.exe = exe
	s.startedAt = time.Now()
	s.cancelProbe = cancelProbe
	s.mu.Unlock()

	s.state.Store(int32(StateRunning))
	metrics.SetChildUp(true)
	s.log.Info(fmt.Sprintf("Spawned %s process", s.cfg.Binary), slog.Int("pid", h.PID()))

	pipeline := stream.New(stream.Config{
		Stdin:  s.cfg.Stdin,
		Stdout: s.cfg.Stdout,
		Stderr: s.cfg.Stderr,
		Mirror: s.logger,
		Logger: s.log,
	}, stream.Endpoints{Stdin: h.Stdin, Stdout: h.Stdout, Stderr: h.Stderr})
	pipeline.Start()

	probes := probe.Watch(probeCtx, instrument(s.newProber(h)), s.probeInterval, nil)

	code := 1
	var pc panics.Catcher
	pc.Try(func() {
		code = s.loop(ctx, h, pipeline, signals, probes)
	})
	if r := pc.Recovered(); r != nil {
		s.fatalPanic("event loop", r)
		s.beginShutdown(TriggerFault)
		s.cleanup()
		s.awaitExit(h)
		code = 1
	}

	_ = pipeline.CloseStdin()
	_ = h.Stdout.Close()
	_ = h.Stderr.Close()
	metrics.SetChildUp(false)
	return code
}

func (s *Supervisor) loop(ctx context.Context, h *process.Handle, pipeline *stream.Pipeline, signals <-chan os.Signal, probes <-chan probe.Event) int {
	for {
		select {
		case <-h.Done():
			return s.childExited(h, pipeline)

		case sig := <-signals:
			s.beginShutdown(TriggerSignal)
			s.log.Info(fmt.Sprintf("Received %s, initiating graceful shutdown", signalName(sig)))
			s.cleanup()
			return s.awaitTerminated(h, pipeline)

		case <-ctx.Done():
			s.beginShutdown(TriggerSignal)
			s.log.Info("Context cancelled, initiating graceful shutdown")
			s.cleanup()
			return s.awaitTerminated(h, pipeline)

		case event, ok := <-probes:
			if !ok {
				probes = nil
				continue
			}
			// The reaper marks the child dead before closing Done, so a
			// not-live event can arrive first for a child that simply exited.
			select {
			case <-h.Done():
				return s.childExited(h, pipeline)
			default:
			}
			var fault *faultError
			if errors.As(event.Err, &fault) {
				s.beginShutdown(TriggerFault)
				s.fatalPanic("liveness probe", fault.recovered)
				s.cleanup()
				s.awaitExit(h)
				return 1
			}
			s.beginShutdown(TriggerProbe)
			if errors.Is(event.Err, probe.ErrNotLive) {
				s.log.Error("Health check: Child process is terminated")
			} else {
				s.log.Error(fmt.Sprintf("Health check failed: Child process appears dead (PID: %d)", h.PID()), slog.String("error", event.Err.Error()))
			}
			s.cleanup()
			s.awaitExit(h)
			return 1

		case err := <-pipeline.Errors():
			if !err.Fatal() {
				continue
			}
			s.beginShutdown(TriggerStream)
			s.log.Error(fmt.Sprintf("Child process error: %v", err))
			s.cleanup()
			s.awaitExit(h)
			return 1

		case fault := <-pipeline.Faults():
			s.beginShutdown(TriggerFault)
			s.fatalPanic(fault.Stream+" relay", fault.Recovered)
			s.cleanup()
			s.awaitExit(h)
			return 1
		}
	}
}

// childExited finishes a run whose child ended on its own.
func (s *Supervisor) childExited(h *process.Handle, pipeline *stream.Pipeline) int {
	exit := h.Exit()
	s.beginShutdown(TriggerExit)
	s.logExit(exit)
	s.waitDrained(pipeline)
	s.cleanup()
	return exit.Status()
}

// awaitTerminated waits for a child that was asked to stop and reports its
// exit status. A child that outlives the kill escalation yields 1.
func (s *Supervisor) awaitTerminated(h *process.Handle, pipeline *stream.Pipeline) int {
	if !s.awaitExit(h) {
		return 1
	}
	exit := h.Exit()
	s.logExit(exit)
	s.waitDrained(pipeline)
	return exit.Status()
}

// abort ends a run that never reached Running.
func (s *Supervisor) abort(msg string) int {
	s.log.Log(context.Background(), logsink.LevelFatal, msg)
	s.beginShutdown(TriggerSpawn)
	s.cleanup()
	return 1
}

func (s *Supervisor) fatalPanic(where string, r *panics.Recovered) {
	s.log.Log(context.Background(), logsink.LevelFatal, fmt.Sprintf("Uncaught exception in %s: %v", where, r.Value))
	if len(r.Stack) > 0 {
		s.log.Log(context.Background(), logsink.LevelFatal, string(r.Stack))
	}
}

func (s *Supervisor) logExit(exit process.Exit) {
	switch {
	case exit.Err != nil:
		s.log.Error(fmt.Sprintf("Child process error: %v", exit.Err))
	case exit.Signaled():
		s.log.Info(fmt.Sprintf("Child process exited with code: null, signal: %s", exit.Signal))
	default:
		s.log.Info(fmt.Sprintf("Child process exited with code: %d, signal: null", exit.Code))
	}
}

func (s *Supervisor) waitDrained(pipeline *stream.Pipeline) {
	timer := time.NewTimer(drainTimeout)
	defer timer.Stop()
	select {
	case <-pipeline.Drained():
	case <-timer.C:
		s.log.Warn("Timed out draining child output")
	}
}

// faultError carries a panic recovered from a probe run.
type faultError struct {
	recovered *panics.Recovered
}

func (e *faultError) Error() string {
	return e.recovered.String()
}

func instrument(p probe.Prober) probe.Prober {
	return probe.ProberFunc(func(ctx context.Context) (err error) {
		started := time.Now()
		var pc panics.Catcher
		pc.Try(func() { err = p.Probe(ctx) })
		if r := pc.Recovered(); r != nil {
			err = &faultError{recovered: r}
		}
		metrics.ObserveProbe(time.Since(started), err)
		return err
	})
}

func encodeArgs(args []string) string {
	if args == nil {
		args = []string{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprint(args)
	}
	return string(data)
}

func signalName(sig os.Signal) string {
	switch sig {
	case os.Interrupt:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return sig.String()
	}
}
