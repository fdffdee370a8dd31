package visibility

import (
	"sync"
	"time"
)

// State is the widget's on-screen lifecycle.
type State string

const (
	Closed  State = "closed"
	Opening State = "opening"
	Open    State = "open"
	Closing State = "closing"
)

// Default transition windows.
const (
	DefaultOpenDelay  = 10 * time.Millisecond
	DefaultCloseDelay = 400 * time.Millisecond
)

// Listener is told about every transition. It runs outside the machine's
// lock, possibly on a timer goroutine.
type Listener func(from, to State)

// Options configures a Machine.
type Options struct {
	OpenDelay  time.Duration
	CloseDelay time.Duration
	Clock      Clock
	OnChange   Listener
}

type transition struct {
	from, to State
}

// Machine drives closed → opening → open → closing → closed with timed entry
// and exit windows. Each scheduled transition carries a generation number so
// a timer that fires after being superseded is ignored.
type Machine struct {
	mu     sync.Mutex
	state  State
	opened bool
	timer  Timer
	gen    uint64

	openDelay  time.Duration
	closeDelay time.Duration
	clock      Clock
	onChange   Listener
}

// NewMachine returns a closed machine.
func NewMachine(opts Options) *Machine {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock
	}
	return &Machine{
		state:      Closed,
		openDelay:  opts.OpenDelay,
		closeDelay: opts.CloseDelay,
		clock:      clock,
		onChange:   opts.OnChange,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsOpen reports whether the widget is on screen, including its entry and
// exit transitions.
func (m *Machine) IsOpen() bool {
	return m.State() != Closed
}

// Open shows the widget. Opening from Closed always plays the opening
// transition; opening while Closing cancels the pending close.
func (m *Machine) Open() {
	m.mu.Lock()
	changes := m.open(false)
	m.mu.Unlock()
	m.notify(changes)
}

// open starts showing a closed or closing widget. direct skips the opening
// window for a widget that has already been opened once.
func (m *Machine) open(direct bool) []transition {
	switch m.state {
	case Closed:
		if direct && m.opened {
			return []transition{m.set(Open)}
		}
		m.opened = true
		changes := []transition{m.set(Opening)}
		if m.openDelay <= 0 {
			return append(changes, m.set(Open))
		}
		m.schedule(m.openDelay, Open)
		return changes
	case Closing:
		m.cancel()
		return []transition{m.set(Open)}
	default:
		return nil
	}
}

// Close hides the widget after the closing window.
func (m *Machine) Close() {
	m.mu.Lock()
	var changes []transition
	switch m.state {
	case Open, Opening:
		m.cancel()
		changes = append(changes, m.set(Closing))
		if m.closeDelay <= 0 {
			changes = append(changes, m.set(Closed))
		} else {
			m.schedule(m.closeDelay, Closed)
		}
	}
	m.mu.Unlock()
	m.notify(changes)
}

// Toggle opens a closed widget and closes any other state immediately. Only
// the first toggle-open of a mount plays the opening transition.
func (m *Machine) Toggle() {
	m.mu.Lock()
	var changes []transition
	if m.state == Closed {
		changes = m.open(true)
	} else {
		m.cancel()
		changes = []transition{m.set(Closed)}
	}
	m.mu.Unlock()
	m.notify(changes)
}

// Stop cancels pending transitions without changing state.
func (m *Machine) Stop() {
	m.mu.Lock()
	m.cancel()
	m.mu.Unlock()
}

// set changes state; callers hold m.mu.
func (m *Machine) set(to State) transition {
	from := m.state
	m.state = to
	return transition{from: from, to: to}
}

// schedule arms a single pending transition; callers hold m.mu.
func (m *Machine) schedule(d time.Duration, to State) {
	m.cancel()
	gen := m.gen
	m.timer = m.clock.AfterFunc(d, func() { m.fire(gen, to) })
}

// cancel drops the pending transition; callers hold m.mu.
func (m *Machine) cancel() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.gen++
}

func (m *Machine) fire(gen uint64, to State) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	change := m.set(to)
	m.mu.Unlock()
	m.notify([]transition{change})
}

func (m *Machine) notify(changes []transition) {
	if m.onChange == nil {
		return
	}
	for _, c := range changes {
		if c.from != c.to {
			m.onChange(c.from, c.to)
		}
	}
}
