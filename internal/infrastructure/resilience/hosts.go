package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrHostOpen      = errors.New("host skipped after repeated failures")
	ErrProbeInFlight = errors.New("host is being probed")
)

// State of one host
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings tunes the breakers. Zero values fall back to defaults.
type Settings struct {
	// Threshold is the number of consecutive failures that opens a host
	Threshold uint32
	// Cooldown is how long an open host is skipped before one probe is let through
	Cooldown time.Duration
	// IsFailure decides which errors count against a host
	IsFailure func(err error) bool
	// OnStateChange observes transitions
	OnStateChange func(host string, from, to State)
}

type host struct {
	state    State
	failures uint32
	reopen   time.Time
	probing  bool
}

// Hosts keeps one breaker per host. A host that keeps failing at the
// network level is skipped until its cooldown expires; then a single probe
// decides whether it is closed again or stays open.
type Hosts struct {
	settings Settings
	now      func() time.Time

	mu    sync.Mutex
	hosts map[string]*host
}

// NewHosts creates an empty set of host breakers.
func NewHosts(settings Settings) *Hosts {
	if settings.Threshold == 0 {
		settings.Threshold = 3
	}
	if settings.Cooldown == 0 {
		settings.Cooldown = 30 * time.Second
	}
	if settings.IsFailure == nil {
		settings.IsFailure = func(err error) bool { return err != nil }
	}
	return &Hosts{
		settings: settings,
		now:      time.Now,
		hosts:    make(map[string]*host),
	}
}

// Do runs fn unless name is currently skipped. The error returned by fn is
// passed through unchanged.
func (h *Hosts) Do(name string, fn func() error) error {
	if err := h.admit(name); err != nil {
		return err
	}

	defer func() {
		if e := recover(); e != nil {
			h.record(name, true)
			panic(e)
		}
	}()

	err := fn()
	h.record(name, h.settings.IsFailure(err))
	return err
}

// State returns the current state of name
func (h *Hosts) State(name string) State {
	h.mu.Lock()
	defer h.mu.Unlock()

	st, ok := h.hosts[name]
	if !ok {
		return StateClosed
	}
	return h.refresh(name, st)
}

// States snapshots the state of every host seen so far
func (h *Hosts) States() map[string]State {
	h.mu.Lock()
	defer h.mu.Unlock()

	states := make(map[string]State, len(h.hosts))
	for name, st := range h.hosts {
		states[name] = h.refresh(name, st)
	}
	return states
}

func (h *Hosts) admit(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	st, ok := h.hosts[name]
	if !ok {
		st = &host{}
		h.hosts[name] = st
	}

	switch h.refresh(name, st) {
	case StateOpen:
		return ErrHostOpen
	case StateHalfOpen:
		if st.probing {
			return ErrProbeInFlight
		}
		st.probing = true
	}
	return nil
}

func (h *Hosts) record(name string, failed bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.hosts[name]
	switch h.refresh(name, st) {
	case StateHalfOpen:
		st.probing = false
		if failed {
			h.transition(name, st, StateOpen)
		} else {
			h.transition(name, st, StateClosed)
		}
	case StateClosed:
		if !failed {
			st.failures = 0
			return
		}
		st.failures++
		if st.failures >= h.settings.Threshold {
			h.transition(name, st, StateOpen)
		}
	}
}

// refresh moves an open host whose cooldown expired to half-open.
func (h *Hosts) refresh(name string, st *host) State {
	if st.state == StateOpen && !h.now().Before(st.reopen) {
		h.transition(name, st, StateHalfOpen)
	}
	return st.state
}

func (h *Hosts) transition(name string, st *host, to State) {
	if st.state == to {
		return
	}
	from := st.state
	st.state = to
	st.failures = 0

	if to == StateOpen {
		st.reopen = h.now().Add(h.settings.Cooldown)
	}

	if h.settings.OnStateChange != nil {
		h.settings.OnStateChange(name, from, to)
	}
}
