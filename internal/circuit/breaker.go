// Package circuit provides the per-repository circuit breaker. A
// repository whose calls keep failing is failed fast for a cool-down
// period instead of dragging every fan-out to its timeout.
package circuit

import (
	"sync"
	"time"
)

// State represents the breaker state.
type State int

const (
	// StateClosed passes requests through.
	StateClosed State = iota
	// StateOpen rejects requests until the cool-down elapses.
	StateOpen
	// StateHalfOpen admits a single probe request.
	StateHalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config tunes a breaker.
type Config struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// breaker.
	FailureThreshold int `yaml:"failure_threshold"`

	// Cooldown is how long the breaker stays open before admitting a
	// probe.
	Cooldown time.Duration `yaml:"cooldown"`
}

// Breaker implements the circuit breaker state machine.
type Breaker struct {
	name   string
	config Config

	mu           sync.Mutex
	state        State
	consecutive  int
	openedAt     time.Time
	probeGranted bool
}

// NewBreaker creates a breaker with defaults filled in.
func NewBreaker(name string, config Config) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 30 * time.Second
	}
	return &Breaker{name: name, config: config, state: StateClosed}
}

// Allow reports whether a call may proceed right now.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(b.openedAt) < b.config.Cooldown {
			return false
		}
		b.state = StateHalfOpen
		b.probeGranted = true
		return true
	case StateHalfOpen:
		if b.probeGranted {
			return false
		}
		b.probeGranted = true
		return true
	}
	return false
}

// Record feeds a call result back into the state machine.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.state = StateClosed
		b.consecutive = 0
		b.probeGranted = false
		return
	}

	b.consecutive++
	if b.state == StateHalfOpen || b.consecutive >= b.config.FailureThreshold {
		b.state = StateOpen
		b.openedAt = time.Now()
		b.probeGranted = false
		b.consecutive = 0
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && time.Since(b.openedAt) >= b.config.Cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Name returns the breaker's repository name.
func (b *Breaker) Name() string { return b.name }
