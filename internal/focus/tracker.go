// Package focus tracks whether the hosting session is the user's active one.
//
// Two independent signals feed the tracker: visibility (the process was
// suspended or resumed) and window focus (the terminal reported focus in or
// out). Either is evidence of a focus change, and the tracker coalesces them
// into one effective state so listeners see a single transition per real
// event.
package focus

import "sync"

// Signal identifies which native source reported a change.
type Signal int

const (
	// SignalVisibility is driven by suspend/resume of the process.
	SignalVisibility Signal = iota
	// SignalWindow is driven by terminal focus reporting.
	SignalWindow
)

func (s Signal) String() string {
	switch s {
	case SignalVisibility:
		return "visibility"
	case SignalWindow:
		return "window"
	default:
		return "unknown"
	}
}

// Tracker holds the effective focus state and notifies listeners when it flips.
type Tracker struct {
	// deliver serializes listener calls so they observe transitions in
	// the order they happened.
	deliver sync.Mutex

	mu        sync.Mutex
	focused   bool
	nextID    int
	listeners map[int]func(bool)
}

// NewTracker creates a Tracker with the given initial focus state.
func NewTracker(initial bool) *Tracker {
	return &Tracker{
		focused:   initial,
		listeners: make(map[int]func(bool)),
	}
}

// Focused reports the current effective focus state.
func (t *Tracker) Focused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.focused
}

// Subscribe registers fn to be called with the new state on every transition.
// The returned function removes the subscription and is safe to call twice.
func (t *Tracker) Subscribe(fn func(focused bool)) (unsubscribe func()) {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.listeners, id)
			t.mu.Unlock()
		})
	}
}

// Report records an observation from one signal. Listeners fire only when
// the effective state actually changes, so a blur reported by both signals
// for the same event produces one transition. Report returns true if a
// transition occurred.
//
// Listeners may call Focused and Subscribe but must not call Report.
func (t *Tracker) Report(sig Signal, focused bool) bool {
	t.deliver.Lock()
	defer t.deliver.Unlock()

	t.mu.Lock()
	if t.focused == focused {
		t.mu.Unlock()
		return false
	}
	t.focused = focused
	fns := make([]func(bool), 0, len(t.listeners))
	for _, fn := range t.listeners {
		fns = append(fns, fn)
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn(focused)
	}
	return true
}
