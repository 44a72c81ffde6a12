package supervisor

import (
	"fmt"
	"time"

	"github.com/Paintersrp/acpwrap/internal/metrics"
	"github.com/Paintersrp/acpwrap/internal/runtime/process"
)

// beginShutdown moves the supervisor into ShuttingDown. Only the first caller
// wins; every later trigger is ignored.
func (s *Supervisor) beginShutdown(trigger string) bool {
	for {
		cur := s.state.Load()
		if State(cur) >= StateShuttingDown {
			return false
		}
		if s.state.CompareAndSwap(cur, int32(StateShuttingDown)) {
			s.trigger.Store(trigger)
			metrics.IncShutdown(trigger)
			return true
		}
	}
}

// Trigger reports what started the shutdown, or "" while none has.
func (s *Supervisor) Trigger() string {
	trigger, _ := s.trigger.Load().(string)
	return trigger
}

// cleanup stops the probe, closes the durable log and asks a live child to
// terminate, in that order. It runs at most once.
func (s *Supervisor) cleanup() {
	s.cleanupOnce.Do(func() {
		s.log.Info("Cleaning up resources...")

		s.mu.Lock()
		cancelProbe := s.cancelProbe
		c := s.child
		s.mu.Unlock()

		if cancelProbe != nil {
			cancelProbe()
		}

		if err := s.logger.Close(); err != nil {
			s.log.Error(fmt.Sprintf("Error closing log file: %v", err))
		}

		if c == nil || !c.Live() {
			return
		}
		if err := c.Terminate(); err != nil {
			s.log.Error(fmt.Sprintf("Error terminating child process: %v", err))
		}
		grace := s.gracePeriod
		timer := time.AfterFunc(grace, func() {
			if !c.Live() {
				return
			}
			s.log.Warn(fmt.Sprintf("Child still running after %s, sending SIGKILL", grace))
			if err := c.Kill(); err != nil {
				s.log.Error(fmt.Sprintf("Error killing child process: %v", err))
			}
		})
		s.mu.Lock()
		s.killTimer = timer
		s.mu.Unlock()
	})
}

// awaitExit blocks until the child is reaped. It gives up when the child
// outlives the grace period plus the reap allowance, reporting false.
func (s *Supervisor) awaitExit(h *process.Handle) bool {
	timer := time.NewTimer(s.gracePeriod + reapTimeout)
	defer timer.Stop()
	select {
	case <-h.Done():
		s.mu.Lock()
		if s.killTimer != nil {
			s.killTimer.Stop()
		}
		s.mu.Unlock()
		return true
	case <-timer.C:
		s.log.Error(fmt.Sprintf("Child process %d did not exit after SIGKILL", h.PID()))
		return false
	}
}
