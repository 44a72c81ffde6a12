package probe

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultInterval is the spacing between liveness checks.
const DefaultInterval = 30 * time.Second

// Event reports the probe failure that ended a watch.
type Event struct {
	Err error
	At  time.Time
}

// Prober defines the behaviour required by the Watch loop.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a plain function to the Prober interface.
type ProberFunc func(ctx context.Context) error

// Probe calls f(ctx).
func (f ProberFunc) Probe(ctx context.Context) error {
	return f(ctx)
}

// Target is the process view a liveness prober needs.
type Target interface {
	PID() int
	Live() bool
}

// ErrNotLive is returned when the target has already been reaped.
var ErrNotLive = errors.New("process is no longer live")

// LivenessError reports a failed liveness check for a PID.
type LivenessError struct {
	PID int
	Err error
}

func (e *LivenessError) Error() string {
	return fmt.Sprintf("liveness check failed for pid %d: %v", e.PID, e.Err)
}

func (e *LivenessError) Unwrap() error {
	return e.Err
}

// Liveness checks that a process still exists without affecting it.
type Liveness struct {
	target Target
	check  func(pid int) error
}

// NewLiveness constructs a liveness prober for target.
func NewLiveness(target Target) *Liveness {
	return &Liveness{target: target, check: processExists}
}

// Probe fails immediately when the target is marked dead, otherwise it asks
// the operating system whether the PID is still present.
func (l *Liveness) Probe(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l == nil || l.target == nil {
		return &LivenessError{Err: ErrNotLive}
	}
	pid := l.target.PID()
	if !l.target.Live() {
		return &LivenessError{PID: pid, Err: ErrNotLive}
	}
	if err := l.check(pid); err != nil {
		return &LivenessError{PID: pid, Err: err}
	}
	return nil
}

// Watch runs prober once per interval until the context is cancelled or a
// probe fails. The first failure is emitted on the returned channel and the
// watch ends; there is no retry. The channel is closed when the watch ends.
func Watch(ctx context.Context, prober Prober, interval time.Duration, nowFn func() time.Time) <-chan Event {
	events := make(chan Event, 1)
	if ctx == nil {
		close(events)
		return events
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	go func() {
		defer close(events)
		if prober == nil {
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			err := prober.Probe(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				sendEvent(ctx, events, Event{Err: err, At: nowFn()})
				return
			}
		}
	}()
	return events
}

func sendEvent(ctx context.Context, events chan<- Event, event Event) bool {
	select {
	case <-ctx.Done():
		return false
	case events <- event:
		return true
	}
}
