package oracle

import (
	"context"
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // Normal operation, requests pass through
	CircuitOpen                         // Too many exhausted prefixes, hold requests back
	CircuitHalfOpen                     // Cooldown elapsed, probing for recovery
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "CLOSED"
	case CircuitOpen:
		return "OPEN"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreaker counts consecutive exhausted queries. Unlike a fail-fast
// breaker it never rejects work: while open, callers wait out the cooldown
// and then probe, so a struggling oracle slows the sweep down instead of
// silently dropping prefixes.
type CircuitBreaker struct {
	mu sync.Mutex

	state            CircuitState
	failureCount     int
	successCount     int
	openedAt         time.Time
	failureThreshold int
	successThreshold int
	openTimeout      time.Duration

	now      func() time.Time
	onChange func(from, to CircuitState, failures int)
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration
func NewCircuitBreaker(failureThreshold, successThreshold int, openTimeout time.Duration) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	if successThreshold < 1 {
		successThreshold = 1
	}
	return &CircuitBreaker{
		state:            CircuitClosed,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		openTimeout:      openTimeout,
		now:              time.Now,
	}
}

// Wait blocks while the circuit is open. When the cooldown has been waited
// out the circuit moves to half-open and Wait returns nil.
func (cb *CircuitBreaker) Wait(ctx context.Context, sleep func(context.Context, time.Duration) error) error {
	cb.mu.Lock()
	if cb.state != CircuitOpen {
		cb.mu.Unlock()
		return nil
	}
	remaining := cb.openTimeout - cb.now().Sub(cb.openedAt)
	cb.mu.Unlock()

	if err := sleep(ctx, remaining); err != nil {
		return err
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitOpen {
		cb.transitionLocked(CircuitHalfOpen)
	}
	return nil
}

// RecordSuccess records a query that returned data
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failureCount = 0
	case CircuitHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.failureCount = 0
			cb.transitionLocked(CircuitClosed)
		}
	}
}

// RecordFailure records a query that exhausted its attempts
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failureCount++
		if cb.failureCount >= cb.failureThreshold {
			cb.openedAt = cb.now()
			cb.transitionLocked(CircuitOpen)
		}
	case CircuitHalfOpen:
		// Any failure in half-open immediately opens the circuit again
		cb.failureCount++
		cb.openedAt = cb.now()
		cb.transitionLocked(CircuitOpen)
	}
}

// GetState returns the current state (for testing/monitoring)
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// transitionLocked moves the circuit to a new state (must be called with lock held)
func (cb *CircuitBreaker) transitionLocked(to CircuitState) {
	from := cb.state
	cb.state = to
	cb.successCount = 0
	if cb.onChange != nil {
		cb.onChange(from, to, cb.failureCount)
	}
}
