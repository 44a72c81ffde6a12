//go:build !windows

package process

import (
	"errors"
	"fmt"
	"syscall"
)

// Terminate asks the child's process group to exit with SIGTERM.
func (h *Handle) Terminate() error {
	return h.signalGroup(syscall.SIGTERM)
}

// Kill forces the child's process group to exit with SIGKILL.
func (h *Handle) Kill() error {
	return h.signalGroup(syscall.SIGKILL)
}

func (h *Handle) signalGroup(sig syscall.Signal) error {
	if !h.Live() {
		return nil
	}
	if err := syscall.Kill(-h.pid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("signal process group %d with %s: %w", h.pid, sig, err)
	}
	return nil
}
