package resilience

import (
	"sync"
	"time"
)

// CircuitBreaker is a binary gate. After threshold consecutive failures it
// refuses work until the recovery window has passed. There is no half-open
// probing: once the window passes, Allow is true again, and a further
// failure (the count is still at or above threshold) reopens it.
type CircuitBreaker struct {
	mu        sync.Mutex
	failures  int
	threshold int
	recovery  time.Duration
	openUntil time.Time
	clock     Clock
}

// BreakerOption configures a CircuitBreaker.
type BreakerOption func(*CircuitBreaker)

// WithBreakerClock sets the time source.
func WithBreakerClock(c Clock) BreakerOption {
	return func(b *CircuitBreaker) {
		if c != nil {
			b.clock = c
		}
	}
}

// NewCircuitBreaker clamps threshold to at least 1 and recovery to at least
// one second.
func NewCircuitBreaker(threshold int, recovery time.Duration, opts ...BreakerOption) *CircuitBreaker {
	if threshold < 1 {
		threshold = 1
	}
	if recovery < time.Second {
		recovery = time.Second
	}
	b := &CircuitBreaker{threshold: threshold, recovery: recovery, clock: SystemClock()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Allow reports whether the recovery window, if any, has passed.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.clock.Now().Before(b.openUntil)
}

// Success closes the breaker and resets the failure count.
func (b *CircuitBreaker) Success() {
	b.mu.Lock()
	b.failures = 0
	b.openUntil = time.Time{}
	b.mu.Unlock()
}

// Failure counts a failure and opens the breaker once the threshold is met.
// Failures while already open do not extend the window.
func (b *CircuitBreaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	now := b.clock.Now()
	if b.failures >= b.threshold && !now.Before(b.openUntil) {
		b.openUntil = now.Add(b.recovery)
	}
}

func (b *CircuitBreaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// OpenUntil is the zero time when the breaker has never opened or was reset.
func (b *CircuitBreaker) OpenUntil() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.openUntil
}

// State is "open" or "closed".
func (b *CircuitBreaker) State() string {
	if b.Allow() {
		return "closed"
	}
	return "open"
}
