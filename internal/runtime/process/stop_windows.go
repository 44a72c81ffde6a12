//go:build windows

package process

import (
	"errors"
	"fmt"
	"os"
)

// Terminate attempts a graceful interrupt. Windows cannot deliver one to a
// console-less child, in which case the caller's forced kill does the work.
func (h *Handle) Terminate() error {
	if !h.Live() {
		return nil
	}
	if err := h.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("interrupt process %d: %w", h.pid, err)
	}
	return nil
}

// Kill terminates the top-level child process.
func (h *Handle) Kill() error {
	if !h.Live() {
		return nil
	}
	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill process %d: %w", h.pid, err)
	}
	return nil
}
