// Package breaker gates calls to upstream rate providers. Each
// provider owns an independent breaker tracking consecutive failures.
package breaker

import (
	"sync"
	"time"
)

const (
	DefaultFailureThreshold = 3
	DefaultResetTimeout     = time.Minute
)

// State of a provider's circuit.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Breaker implements consecutive-failure circuit breaking: the circuit
// opens at threshold failures, stays open for resetTimeout since the
// last failure, then lets a single probe through (half-open). A probe
// success closes the circuit; a probe failure restarts the timeout.
type Breaker struct {
	mu           sync.Mutex
	failures     int
	lastFailure  time.Time
	open         bool
	threshold    int
	resetTimeout time.Duration
	now          func() time.Time
}

func New(threshold int, resetTimeout time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if resetTimeout <= 0 {
		resetTimeout = DefaultResetTimeout
	}
	return &Breaker{threshold: threshold, resetTimeout: resetTimeout, now: time.Now}
}

// WithClock injects a clock for tests.
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.now = now
	return b
}

// Allow reports whether a call may be attempted. While the circuit is
// open and the reset timeout has not elapsed it returns false; once it
// has elapsed the next call is allowed through as a probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return true
	}
	return b.now().Sub(b.lastFailure) >= b.resetTimeout
}

// Success resets the failure count and closes the circuit.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.open = false
}

// Failure records one failure, opening the circuit at the threshold.
// While open, each failed probe restarts the reset timeout.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFailure = b.now()
	if b.failures >= b.threshold {
		b.open = true
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return StateClosed
	}
	if b.now().Sub(b.lastFailure) >= b.resetTimeout {
		return StateHalfOpen
	}
	return StateOpen
}

// Snapshot is a point-in-time view used for health summaries.
type Snapshot struct {
	Provider    string
	State       State
	Failures    int
	LastFailure time.Time
}

func (b *Breaker) snapshot(name string) Snapshot {
	st := b.State()
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{Provider: name, State: st, Failures: b.failures, LastFailure: b.lastFailure}
}

// Registry holds one breaker per provider, keyed by provider name.
// This is process-wide state: provider health must inform subsequent
// unrelated requests.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	names    []string

	threshold    int
	resetTimeout time.Duration
	now          func() time.Time
}

func NewRegistry(threshold int, resetTimeout time.Duration) *Registry {
	return &Registry{
		breakers:     map[string]*Breaker{},
		threshold:    threshold,
		resetTimeout: resetTimeout,
		now:          time.Now,
	}
}

// WithClock injects a clock used by all breakers created afterwards.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

func (r *Registry) get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[name]
	if !ok {
		b = New(r.threshold, r.resetTimeout).WithClock(r.now)
		r.breakers[name] = b
		r.names = append(r.names, name)
	}
	return b
}

func (r *Registry) Allow(name string) bool { return r.get(name).Allow() }
func (r *Registry) Success(name string)    { r.get(name).Success() }
func (r *Registry) Failure(name string)    { r.get(name).Failure() }

func (r *Registry) State(name string) State { return r.get(name).State() }

// Snapshots returns per-provider views in registration order.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	names := append([]string(nil), r.names...)
	r.mu.Unlock()

	out := make([]Snapshot, 0, len(names))
	for _, n := range names {
		out = append(out, r.get(n).snapshot(n))
	}
	return out
}
