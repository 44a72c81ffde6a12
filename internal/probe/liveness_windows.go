//go:build windows

package probe

import "os"

func processExists(pid int) error {
	if pid <= 0 {
		return ErrNotLive
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Release()
}
