package process

import (
	"bufio"
	"errors"
	"io"
	stdruntime "runtime"
	"strings"
	"testing"
	"time"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if stdruntime.GOOS == "windows" {
		t.Skip("process runtime tests skipped on windows")
	}
}

func startShell(t *testing.T, script string) *Handle {
	t.Helper()
	h, err := Start(Spec{Path: "/bin/sh", Args: []string{"-c", script}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() {
		_ = h.Kill()
		waitDone(t, h, 5*time.Second)
	})
	return h
}

func waitDone(t *testing.T, h *Handle, timeout time.Duration) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for pid %d", h.PID())
	}
}

func TestStartReportsExitCode(t *testing.T) {
	skipOnWindows(t)

	h := startShell(t, "echo out; echo err >&2; exit 3")
	if h.PID() <= 0 {
		t.Fatalf("expected pid, got %d", h.PID())
	}

	stdout, err := io.ReadAll(h.Stdout)
	if err != nil {
		t.Fatalf("read stdout: %v", err)
	}
	stderr, err := io.ReadAll(h.Stderr)
	if err != nil {
		t.Fatalf("read stderr: %v", err)
	}
	if string(stdout) != "out\n" || string(stderr) != "err\n" {
		t.Fatalf("unexpected output stdout=%q stderr=%q", stdout, stderr)
	}

	waitDone(t, h, 5*time.Second)
	exit := h.Exit()
	if exit.Code != 3 || exit.Status() != 3 {
		t.Fatalf("expected exit 3, got %+v", exit)
	}
	if exit.Signaled() {
		t.Fatal("did not expect a signaled exit")
	}
	if h.Live() {
		t.Fatal("expected handle to be marked dead after reaping")
	}
}

func TestStdinReachesChild(t *testing.T) {
	skipOnWindows(t)

	h := startShell(t, "read line; echo \"got:$line\"")
	if _, err := io.WriteString(h.Stdin, "ping\n"); err != nil {
		t.Fatalf("write stdin: %v", err)
	}
	out, err := io.ReadAll(h.Stdout)
	if err != nil {
		t.Fatalf("read stdout: %v", err)
	}
	if string(out) != "got:ping\n" {
		t.Fatalf("unexpected output %q", out)
	}
	waitDone(t, h, 5*time.Second)
	if h.Exit().Status() != 0 {
		t.Fatalf("expected clean exit, got %+v", h.Exit())
	}
}

func TestTerminateEndsChild(t *testing.T) {
	skipOnWindows(t)

	h := startShell(t, "echo ready; exec sleep 30")
	awaitLine(t, h.Stdout, "ready")

	if err := h.Terminate(); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	waitDone(t, h, 5*time.Second)

	exit := h.Exit()
	if !exit.Signaled() {
		t.Fatalf("expected signaled exit, got %+v", exit)
	}
	if exit.Status() != 1 {
		t.Fatalf("expected status 1 for signaled exit, got %d", exit.Status())
	}
	if !strings.Contains(exit.Signal, "terminated") {
		t.Fatalf("expected SIGTERM description, got %q", exit.Signal)
	}
}

func TestKillEndsChildIgnoringTerm(t *testing.T) {
	skipOnWindows(t)

	h := startShell(t, "trap '' TERM; echo ready; while :; do sleep 1; done")
	awaitLine(t, h.Stdout, "ready")

	if err := h.Terminate(); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	select {
	case <-h.Done():
		t.Fatal("child should ignore SIGTERM")
	case <-time.After(200 * time.Millisecond):
	}

	if err := h.Kill(); err != nil {
		t.Fatalf("kill: %v", err)
	}
	waitDone(t, h, 5*time.Second)
	if !h.Exit().Signaled() {
		t.Fatalf("expected signaled exit, got %+v", h.Exit())
	}
}

func TestSignalsAfterExitAreNoops(t *testing.T) {
	skipOnWindows(t)

	h := startShell(t, "exit 0")
	waitDone(t, h, 5*time.Second)
	if err := h.Terminate(); err != nil {
		t.Fatalf("terminate after exit: %v", err)
	}
	if err := h.Kill(); err != nil {
		t.Fatalf("kill after exit: %v", err)
	}
}

func TestStartFailure(t *testing.T) {
	_, err := Start(Spec{Path: "/nonexistent/acpwrap-test-binary"})
	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("expected SpawnError, got %v", err)
	}
	if spawnErr.Path != "/nonexistent/acpwrap-test-binary" {
		t.Fatalf("unexpected path %q", spawnErr.Path)
	}
}

func TestExitStatus(t *testing.T) {
	tests := []struct {
		name string
		exit Exit
		want int
	}{
		{name: "zero", exit: Exit{Code: 0}, want: 0},
		{name: "numeric", exit: Exit{Code: 42}, want: 42},
		{name: "signaled", exit: Exit{Code: -1, Signal: "signal: killed"}, want: 1},
		{name: "waitError", exit: Exit{Code: 0, Err: errors.New("wait failed")}, want: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.exit.Status(); got != tc.want {
				t.Fatalf("Status() = %d, want %d", got, tc.want)
			}
		})
	}
}

func awaitLine(t *testing.T, r io.Reader, want string) {
	t.Helper()
	lines := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(r).ReadString('\n')
		lines <- strings.TrimSpace(line)
	}()
	select {
	case got := <-lines:
		if got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}
