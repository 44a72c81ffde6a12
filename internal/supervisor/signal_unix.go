//go:build !windows

package supervisor

import (
	"os/signal"
	"syscall"
)

// ignoreBrokenPipe keeps a closed stdout from killing the wrapper. Writes
// then fail with EPIPE and the stdout relay reports them.
func ignoreBrokenPipe() {
	signal.Ignore(syscall.SIGPIPE)
}
