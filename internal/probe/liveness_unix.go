//go:build !windows

package probe

import (
	"errors"
	"syscall"
)

func processExists(pid int) error {
	if pid <= 0 {
		return ErrNotLive
	}
	err := syscall.Kill(pid, syscall.Signal(0))
	if err == nil || errors.Is(err, syscall.EPERM) {
		return nil
	}
	return err
}
