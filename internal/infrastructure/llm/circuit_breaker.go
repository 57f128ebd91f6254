package llm

import (
	"sync"
	"time"
)

// CircuitState is the breaker position for the model backend.
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // backend healthy, requests flow
	CircuitOpen                         // backend down, fail fast
	CircuitHalfOpen                     // probing whether the backend recovered
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	}
	return "unknown"
}

// CircuitBreaker guards the single Ollama backend. Every engine in the
// runtime generates through the one local model server; when it stops
// answering, each caller would otherwise hang for a full HTTP timeout.
// After threshold consecutive failures the breaker opens and generations
// fail immediately. Once recoveryTimeout has passed, one probe request
// is admitted: success closes the breaker, another failure reopens it.
type CircuitBreaker struct {
	mu              sync.RWMutex
	state           CircuitState
	failures        int
	threshold       int
	recoveryTimeout time.Duration
	lastFailure     time.Time
}

func NewCircuitBreaker(threshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = 30 * time.Second
	}
	return &CircuitBreaker{
		state:           CircuitClosed,
		threshold:       threshold,
		recoveryTimeout: recoveryTimeout,
	}
}

// Allow reports whether the next generation may reach the backend. An
// open breaker flips to half-open after the recovery timeout and admits
// a probe.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen && time.Since(cb.lastFailure) >= cb.recoveryTimeout {
		cb.state = CircuitHalfOpen
	}
	return cb.state != CircuitOpen
}

// RecordSuccess clears the failure streak. A successful probe closes
// the breaker.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state == CircuitHalfOpen {
		cb.state = CircuitClosed
	}
}

// RecordFailure extends the failure streak. A failed probe reopens the
// breaker immediately; otherwise it opens once the streak reaches the
// threshold.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()

	if cb.state == CircuitHalfOpen || cb.failures >= cb.threshold {
		cb.state = CircuitOpen
	}
}

// State returns the current breaker position.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}
