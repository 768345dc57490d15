package sqlite

import (
	"errors"
	"sync"
	"time"
)

// BreakerState represents the state of the circuit breaker.
type BreakerState int

const (
	StateClosed   BreakerState = 0
	StateOpen     BreakerState = 1
	StateHalfOpen BreakerState = 2
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when the circuit breaker is open and rejecting requests.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker implements a 3-state circuit breaker for the sqlite store:
// CLOSED (normal) -> OPEN (failing) -> HALF_OPEN (probing) -> CLOSED.
type CircuitBreaker struct {
	mu            sync.Mutex
	state         BreakerState
	failures      int
	threshold     int
	resetTimeout  time.Duration
	lastFailure   time.Time
	nowFunc       func() time.Time // for testing
	onStateChange func(from, to BreakerState)
}

// NewCircuitBreaker creates a circuit breaker with the given threshold and reset timeout.
func NewCircuitBreaker(threshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold:    threshold,
		resetTimeout: resetTimeout,
		nowFunc:      time.Now,
	}
}

// OnStateChange registers a callback invoked whenever the breaker transitions
// state; ResilientStore.OnStateChange exposes it so the serve command can log
// breaker trips.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to BreakerState)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

func (cb *CircuitBreaker) transition(to BreakerState) {
	from := cb.state
	cb.state = to
	if from != to && cb.onStateChange != nil {
		cb.onStateChange(from, to)
	}
}

// Execute runs fn through the circuit breaker. Returns ErrCircuitOpen if the
// breaker is open and the reset timeout hasn't elapsed.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	switch cb.state {
	case StateClosed:
		cb.mu.Unlock()
		err := fn()
		cb.mu.Lock()
		if err != nil {
			cb.failures++
			if cb.failures >= cb.threshold {
				cb.transition(StateOpen)
				cb.lastFailure = cb.nowFunc()
			}
		} else {
			cb.failures = 0
		}
		cb.mu.Unlock()
		return err

	case StateOpen:
		if cb.nowFunc().Sub(cb.lastFailure) >= cb.resetTimeout {
			cb.transition(StateHalfOpen)
			cb.mu.Unlock()
			err := fn()
			cb.mu.Lock()
			if err != nil {
				cb.transition(StateOpen)
				cb.lastFailure = cb.nowFunc()
			} else {
				cb.transition(StateClosed)
				cb.failures = 0
			}
			cb.mu.Unlock()
			return err
		}
		cb.mu.Unlock()
		return ErrCircuitOpen

	case StateHalfOpen:
		cb.mu.Unlock()
		return ErrCircuitOpen

	default:
		cb.mu.Unlock()
		return ErrCircuitOpen
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
