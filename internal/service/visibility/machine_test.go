package visibility

import (
	"reflect"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu      sync.Mutex
	changes []string
}

func (r *recorder) listen(from, to State) {
	r.mu.Lock()
	r.changes = append(r.changes, string(from)+">"+string(to))
	r.mu.Unlock()
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.changes...)
}

func newTestMachine() (*Machine, *ManualClock, *recorder) {
	clock := NewManualClock()
	rec := &recorder{}
	m := NewMachine(Options{
		OpenDelay:  DefaultOpenDelay,
		CloseDelay: DefaultCloseDelay,
		Clock:      clock,
		OnChange:   rec.listen,
	})
	return m, clock, rec
}

func TestOpenWaitsForOpeningDelay(t *testing.T) {
	m, clock, _ := newTestMachine()

	m.Open()
	if m.State() != Opening {
		t.Fatalf("expected opening, got %s", m.State())
	}
	if !m.IsOpen() {
		t.Fatal("opening widget should report open")
	}

	clock.Advance(DefaultOpenDelay - time.Millisecond)
	if m.State() != Opening {
		t.Fatalf("opened too early: %s", m.State())
	}

	clock.Advance(time.Millisecond)
	if m.State() != Open {
		t.Fatalf("expected open, got %s", m.State())
	}
}

func TestCloseWaitsForClosingDelay(t *testing.T) {
	m, clock, rec := newTestMachine()
	m.Open()
	clock.Advance(DefaultOpenDelay)

	m.Close()
	if m.State() != Closing {
		t.Fatalf("expected closing, got %s", m.State())
	}

	clock.Advance(DefaultCloseDelay - time.Millisecond)
	if m.State() != Closing {
		t.Fatalf("closed too early: %s", m.State())
	}

	clock.Advance(time.Millisecond)
	if m.State() != Closed || m.IsOpen() {
		t.Fatalf("expected closed, got %s", m.State())
	}

	want := []string{"closed>opening", "opening>open", "open>closing", "closing>closed"}
	if got := rec.get(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected transitions: %v", got)
	}
}

func TestOpenDuringClosingCancelsClose(t *testing.T) {
	m, clock, _ := newTestMachine()
	m.Open()
	clock.Advance(DefaultOpenDelay)

	m.Close()
	clock.Advance(100 * time.Millisecond)
	m.Open()

	if m.State() != Open {
		t.Fatalf("expected open right away, got %s", m.State())
	}

	clock.Advance(time.Second)
	if m.State() != Open {
		t.Fatalf("stale close timer flipped state to %s", m.State())
	}
	if clock.Pending() != 0 {
		t.Fatalf("expected no armed timers, got %d", clock.Pending())
	}
}

func TestStaleTimerIgnoredWhenStopLosesRace(t *testing.T) {
	m, _, _ := newTestMachine()
	m.Open()

	// capture the armed callback by re-arming through a clock whose Stop
	// always reports failure
	var fired func()
	m.mu.Lock()
	m.clock = clockFunc(func(d time.Duration, f func()) Timer {
		fired = f
		return stuckTimer{}
	})
	m.mu.Unlock()

	m.Toggle() // closes immediately, invalidating the opening timer
	m.Open()   // re-arms an opening timer via the stuck clock
	m.Close()  // replaces it with a close timer
	m.Open()   // cancels it, but Stop reports failure

	fired()
	if m.State() != Open {
		t.Fatalf("stale close fired anyway: %s", m.State())
	}
}

func TestReopenAfterCloseWaitsForOpeningDelay(t *testing.T) {
	m, clock, rec := newTestMachine()

	m.Open()
	clock.Advance(DefaultOpenDelay)
	m.Close()
	clock.Advance(DefaultCloseDelay)
	if m.State() != Closed {
		t.Fatalf("expected closed, got %s", m.State())
	}

	m.Open()
	if m.State() != Opening {
		t.Fatalf("re-open should play the opening window, got %s", m.State())
	}
	clock.Advance(DefaultOpenDelay)
	if m.State() != Open {
		t.Fatalf("expected open, got %s", m.State())
	}

	want := []string{
		"closed>opening", "opening>open", "open>closing", "closing>closed",
		"closed>opening", "opening>open",
	}
	if got := rec.get(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected transitions: %v", got)
	}
}

func TestToggle(t *testing.T) {
	m, clock, rec := newTestMachine()

	m.Toggle()
	clock.Advance(DefaultOpenDelay)
	if m.State() != Open {
		t.Fatalf("expected open after first toggle, got %s", m.State())
	}

	m.Toggle()
	if m.State() != Closed {
		t.Fatalf("toggle should close immediately, got %s", m.State())
	}

	m.Toggle()
	if m.State() != Open {
		t.Fatalf("re-open via toggle should skip the opening window, got %s", m.State())
	}

	want := []string{"closed>opening", "opening>open", "open>closed", "closed>open"}
	if got := rec.get(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected transitions: %v", got)
	}
}

func TestToggleWhileOpeningCancelsOpen(t *testing.T) {
	m, clock, _ := newTestMachine()
	m.Open()
	m.Toggle()

	clock.Advance(time.Second)
	if m.State() != Closed {
		t.Fatalf("pending open should have been cancelled, got %s", m.State())
	}
}

func TestCloseWhenClosedIsNoop(t *testing.T) {
	m, clock, rec := newTestMachine()
	m.Close()
	clock.Advance(time.Second)

	if m.State() != Closed || len(rec.get()) != 0 {
		t.Fatalf("unexpected transitions %v", rec.get())
	}
}

func TestZeroDelaysTransitionSynchronously(t *testing.T) {
	rec := &recorder{}
	m := NewMachine(Options{Clock: NewManualClock(), OnChange: rec.listen})

	m.Open()
	m.Close()

	want := []string{"closed>opening", "opening>open", "open>closing", "closing>closed"}
	if got := rec.get(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected transitions: %v", got)
	}
}

func TestSystemClockFires(t *testing.T) {
	done := make(chan State, 4)
	m := NewMachine(Options{
		OpenDelay: time.Millisecond,
		OnChange:  func(_, to State) { done <- to },
	})
	defer m.Stop()

	m.Open()
	for _, want := range []State{Opening, Open} {
		select {
		case got := <-done:
			if got != want {
				t.Fatalf("expected %s, got %s", want, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %s", want)
		}
	}
}

type clockFunc func(d time.Duration, f func()) Timer

func (c clockFunc) AfterFunc(d time.Duration, f func()) Timer { return c(d, f) }

type stuckTimer struct{}

func (stuckTimer) Stop() bool { return false }
