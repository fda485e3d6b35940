// Package health tracks the liveness of the control plane's external
// dependencies. Each dependency gets a circuit breaker; the monitor probes
// the dependencies periodically and aggregates their state for /health.
package health

import (
	"fmt"
	"sync"
	"time"

	"github.com/storepilot/storepilot/internal/domain"
)

// BreakerState is the circuit state for one dependency.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerSnapshot is a point-in-time view of one breaker, serialized into
// /health and /metrics/json responses.
type BreakerSnapshot struct {
	Name                string    `json:"name"`
	State               string    `json:"state"`
	Healthy             bool      `json:"healthy"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastTransition      time.Time `json:"last_transition"`
	LastError           string    `json:"last_error,omitempty"`
}

// Breaker is a consecutive-failure circuit breaker. It trips open after
// threshold consecutive failures, fails fast while open, and after cooldown
// admits a single trial call in half-open state.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu            sync.Mutex
	state         BreakerState
	failures      int
	lastError     string
	changedAt     time.Time
	probeInFlight bool
	onTransition  func(name string, state BreakerState)
}

func NewBreaker(name string, threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		name:      name,
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		state:     StateClosed,
		changedAt: time.Now(),
	}
}

// OnTransition registers a callback invoked (under the breaker lock) on
// every state change. Used to keep metrics gauges in sync.
func (b *Breaker) OnTransition(fn func(name string, state BreakerState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onTransition = fn
}

// Allow reports whether a call to the dependency may proceed. While open it
// fails fast with ErrDependencyUnavailable; once the cooldown has elapsed it
// moves to half-open and admits exactly one probe at a time.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.changedAt) < b.cooldown {
			return fmt.Errorf("%w: %s circuit open", domain.ErrDependencyUnavailable, b.name)
		}
		b.transition(StateHalfOpen)
		b.probeInFlight = true
		return nil
	case StateHalfOpen:
		if b.probeInFlight {
			return fmt.Errorf("%w: %s circuit probing", domain.ErrDependencyUnavailable, b.name)
		}
		b.probeInFlight = true
		return nil
	}
	return nil
}

// Success records a successful call, closing the circuit.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.lastError = ""
	b.probeInFlight = false
	if b.state != StateClosed {
		b.transition(StateClosed)
	}
}

// Failure records a failed call. In half-open state a single failure
// re-opens the circuit; in closed state the circuit opens once the
// consecutive-failure threshold is reached.
func (b *Breaker) Failure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if err != nil {
		b.lastError = err.Error()
	}
	b.probeInFlight = false
	switch b.state {
	case StateHalfOpen:
		b.transition(StateOpen)
	case StateClosed:
		if b.failures >= b.threshold {
			b.transition(StateOpen)
		}
	}
}

// State returns the current circuit state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Healthy reports whether the dependency is currently usable.
func (b *Breaker) Healthy() bool {
	return b.State() == StateClosed
}

// Snapshot returns the breaker's current view for health reporting.
func (b *Breaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerSnapshot{
		Name:                b.name,
		State:               b.state.String(),
		Healthy:             b.state == StateClosed,
		ConsecutiveFailures: b.failures,
		LastTransition:      b.changedAt,
		LastError:           b.lastError,
	}
}

// transition must be called with the lock held.
func (b *Breaker) transition(to BreakerState) {
	b.state = to
	b.changedAt = b.now()
	if b.onTransition != nil {
		b.onTransition(b.name, to)
	}
}
