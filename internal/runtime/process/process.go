package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync/atomic"
)

// Spec describes the child to launch.
type Spec struct {
	Path string
	Args []string
	// Env replaces the inherited environment when non-nil.
	Env []string
	Dir string
}

// SpawnError reports an OS-level failure to create the child.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// Exit records how the child terminated.
type Exit struct {
	// Code is the numeric exit status, or -1 when the child was killed by a
	// signal or never reported one.
	Code int
	// Signal describes the terminating signal when Code is -1.
	Signal string
	// Err is set when waiting failed for a reason other than a non-zero
	// status.
	Err error
}

// Signaled reports whether the child ended without a numeric status.
func (e Exit) Signaled() bool {
	return e.Code < 0 && e.Err == nil
}

// Status maps the exit to the supervisor's own exit code: the child's status
// when it has one, otherwise 1.
func (e Exit) Status() int {
	if e.Code < 0 || e.Err != nil {
		return 1
	}
	return e.Code
}

// Handle is the supervisor's view of the running child. It is written only by
// Start and by the goroutine that reaps the child.
type Handle struct {
	Stdin  io.WriteCloser
	Stdout io.ReadCloser
	Stderr io.ReadCloser

	cmd  *exec.Cmd
	pid  int
	live atomic.Bool
	done chan struct{}
	exit Exit
}

// Start launches the child with piped standard streams.
func Start(spec Spec) (*Handle, error) {
	if spec.Path == "" {
		return nil, &SpawnError{Err: errors.New("empty executable path")}
	}

	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Env = spec.Env
	cmd.Dir = spec.Dir
	configureCmdSysProcAttr(cmd)

	var (
		parentEnds []*os.File
		childEnds  []*os.File
	)
	closeAll := func(files []*os.File) {
		for _, f := range files {
			_ = f.Close()
		}
	}

	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, &SpawnError{Path: spec.Path, Err: fmt.Errorf("stdin pipe: %w", err)}
	}
	childEnds, parentEnds = append(childEnds, stdinR), append(parentEnds, stdinW)

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		closeAll(childEnds)
		closeAll(parentEnds)
		return nil, &SpawnError{Path: spec.Path, Err: fmt.Errorf("stdout pipe: %w", err)}
	}
	childEnds, parentEnds = append(childEnds, stdoutW), append(parentEnds, stdoutR)

	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(childEnds)
		closeAll(parentEnds)
		return nil, &SpawnError{Path: spec.Path, Err: fmt.Errorf("stderr pipe: %w", err)}
	}
	childEnds, parentEnds = append(childEnds, stderrW), append(parentEnds, stderrR)

	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		closeAll(childEnds)
		closeAll(parentEnds)
		return nil, &SpawnError{Path: spec.Path, Err: err}
	}
	// The child holds its own copies now; keeping ours open would stop the
	// output pipes from ever reporting EOF.
	closeAll(childEnds)

	h := &Handle{
		Stdin:  stdinW,
		Stdout: stdoutR,
		Stderr: stderrR,
		cmd:    cmd,
		pid:    cmd.Process.Pid,
		done:   make(chan struct{}),
	}
	h.live.Store(true)

	go h.reap()

	return h, nil
}

func (h *Handle) reap() {
	err := h.cmd.Wait()
	h.exit = exitFrom(h.cmd.ProcessState, err)
	h.live.Store(false)
	close(h.done)
}

func exitFrom(state *os.ProcessState, err error) Exit {
	if state == nil {
		if err == nil {
			err = errors.New("process state unavailable")
		}
		return Exit{Code: -1, Err: err}
	}
	exit := Exit{Code: state.ExitCode()}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		exit.Err = err
	}
	if exit.Code < 0 && exit.Err == nil {
		exit.Signal = state.String()
	}
	return exit
}

// PID returns the child's process identifier.
func (h *Handle) PID() int {
	return h.pid
}

// Live reports whether the child has not been reaped yet.
func (h *Handle) Live() bool {
	return h.live.Load()
}

// Done is closed once the child has been reaped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Exit returns the termination record. It is only meaningful after Done is
// closed.
func (h *Handle) Exit() Exit {
	<-h.done
	return h.exit
}
