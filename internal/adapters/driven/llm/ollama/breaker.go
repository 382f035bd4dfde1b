package ollama

import (
	"sync"
	"time"

	"github.com/fillwise/fillwise/internal/logger"
)

// CircuitState is the breaker's position.
type CircuitState string

const (
	// StateClosed is normal operation.
	StateClosed CircuitState = "closed"

	// StateOpen rejects every call immediately.
	StateOpen CircuitState = "open"

	// StateHalfOpen allows a single probe call.
	StateHalfOpen CircuitState = "half_open"
)

// CircuitBreaker is a time-based breaker guarding the Ollama backend.
// Consecutive failures trip it OPEN; after the timeout it moves to
// HALF_OPEN, where one probe decides between CLOSED and OPEN again.
type CircuitBreaker struct {
	mu          sync.Mutex
	threshold   int
	timeout     time.Duration
	state       CircuitState
	failures    int
	lastFailure time.Time

	// now is swapped out in tests.
	now func() time.Time
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(threshold int, timeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold,
		timeout:   timeout,
		state:     StateClosed,
		now:       time.Now,
	}
}

// State returns the current position, moving OPEN to HALF_OPEN once the
// timeout has elapsed since the last failure.
func (b *CircuitBreaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *CircuitBreaker) stateLocked() CircuitState {
	if b.state == StateOpen && b.now().Sub(b.lastFailure) >= b.timeout {
		b.state = StateHalfOpen
		logger.Get().Info("circuit_half_open", "timeout", b.timeout)
	}
	return b.state
}

// Allow reports whether a request may proceed.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked() != StateOpen
}

// RecordSuccess closes the breaker and clears the failure counter.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateClosed {
		logger.Get().Info("circuit_closed")
	}
	b.failures = 0
	b.state = StateClosed
}

// RecordFailure counts a failure and trips the breaker at the threshold.
// A failed HALF_OPEN probe reopens immediately.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFailure = b.now()
	if b.state == StateHalfOpen || b.failures >= b.threshold {
		if b.state != StateOpen {
			logger.Get().Warn("circuit_opened",
				"failures", b.failures, "threshold", b.threshold)
		}
		b.state = StateOpen
	}
}
