package probe

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

type fakeTarget struct {
	pid  int
	live atomic.Bool
}

func newFakeTarget(pid int) *fakeTarget {
	t := &fakeTarget{pid: pid}
	t.live.Store(true)
	return t
}

func (t *fakeTarget) PID() int   { return t.pid }
func (t *fakeTarget) Live() bool { return t.live.Load() }

func TestLivenessCurrentProcess(t *testing.T) {
	prober := NewLiveness(newFakeTarget(os.Getpid()))
	if err := prober.Probe(context.Background()); err != nil {
		t.Fatalf("expected own pid to be live, got %v", err)
	}
}

func TestLivenessDeadTarget(t *testing.T) {
	target := newFakeTarget(os.Getpid())
	target.live.Store(false)

	err := NewLiveness(target).Probe(context.Background())
	var livenessErr *LivenessError
	if !errors.As(err, &livenessErr) {
		t.Fatalf("expected LivenessError, got %v", err)
	}
	if !errors.Is(err, ErrNotLive) {
		t.Fatalf("expected ErrNotLive, got %v", err)
	}
	if livenessErr.PID != os.Getpid() {
		t.Fatalf("unexpected pid %d", livenessErr.PID)
	}
}

func TestLivenessCheckFailure(t *testing.T) {
	boom := errors.New("no such process")
	prober := NewLiveness(newFakeTarget(42))
	prober.check = func(pid int) error {
		if pid != 42 {
			t.Fatalf("unexpected pid %d", pid)
		}
		return boom
	}

	err := prober.Probe(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped check error, got %v", err)
	}
}

func TestWatchEmitsFirstFailureAndCloses(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("gone")
	prober := ProberFunc(func(context.Context) error {
		if calls.Add(1) < 3 {
			return nil
		}
		return boom
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	events := Watch(ctx, prober, 10*time.Millisecond, func() time.Time { return at })

	event, ok := <-events
	if !ok {
		t.Fatal("expected failure event before close")
	}
	if !errors.Is(event.Err, boom) {
		t.Fatalf("unexpected event error %v", event.Err)
	}
	if !event.At.Equal(at) {
		t.Fatalf("unexpected event time %v", event.At)
	}
	if _, ok := <-events; ok {
		t.Fatal("expected channel to close after the first failure")
	}

	time.Sleep(40 * time.Millisecond)
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected probing to stop after failure, got %d calls", got)
	}
}

func TestWatchWaitsOneIntervalBeforeProbing(t *testing.T) {
	var calls atomic.Int32
	prober := ProberFunc(func(context.Context) error {
		calls.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := Watch(ctx, prober, time.Hour, nil)
	ensureNoEvent(t, events, 30*time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Fatalf("expected no probe before the first interval, got %d", got)
	}
}

func TestWatchStopsOnCancel(t *testing.T) {
	prober := ProberFunc(func(context.Context) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	events := Watch(ctx, prober, 5*time.Millisecond, nil)
	ensureNoEvent(t, events, 30*time.Millisecond)
	cancel()

	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("expected no event after cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
}

func TestWatchNilProberCloses(t *testing.T) {
	events := Watch(context.Background(), nil, time.Millisecond, nil)
	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("expected channel to close for nil prober")
	}
}

func ensureNoEvent(t *testing.T, events <-chan Event, duration time.Duration) {
	t.Helper()
	select {
	case event, ok := <-events:
		if ok {
			t.Fatalf("unexpected event %+v", event)
		}
		t.Fatal("channel closed unexpectedly")
	case <-time.After(duration):
	}
}
