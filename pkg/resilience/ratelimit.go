package resilience

import (
	"context"
	"sync"
	"time"
)

// minWait bounds how briefly Acquire sleeps between refill checks.
const minWait = 10 * time.Millisecond

// TokenBucket is a blocking requests-per-minute limiter. Tokens refill lazily
// on each acquisition attempt; there is no background goroutine.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	perSecond  float64
	lastRefill time.Time
	clock      Clock
}

// BucketOption configures a TokenBucket.
type BucketOption func(*TokenBucket)

// WithBurst sets the bucket capacity. Values below 1 are ignored.
func WithBurst(n int) BucketOption {
	return func(b *TokenBucket) {
		if n >= 1 {
			b.capacity = float64(n)
		}
	}
}

// WithBucketClock sets the time source.
func WithBucketClock(c Clock) BucketOption {
	return func(b *TokenBucket) {
		if c != nil {
			b.clock = c
		}
	}
}

// NewTokenBucket returns a full bucket allowing rpm acquisitions per minute.
// rpm below 1 is treated as 1. Capacity defaults to rpm.
func NewTokenBucket(rpm int, opts ...BucketOption) *TokenBucket {
	if rpm < 1 {
		rpm = 1
	}
	b := &TokenBucket{
		capacity:  float64(rpm),
		perSecond: float64(rpm) / 60.0,
		clock:     SystemClock(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.tokens = b.capacity
	b.lastRefill = b.clock.Now()
	return b
}

// Acquire blocks until a token is available and consumes it.
func (b *TokenBucket) Acquire() {
	_ = b.AcquireContext(context.Background())
}

// AcquireContext is Acquire that gives up when ctx is done.
func (b *TokenBucket) AcquireContext(ctx context.Context) error {
	for {
		wait, ok := b.take()
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.clock.After(wait):
		}
	}
}

// take refills, then consumes a token if one is whole. Otherwise it returns
// how long until one should be.
func (b *TokenBucket) take() (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	if elapsed := now.Sub(b.lastRefill).Seconds(); elapsed > 0 {
		b.tokens += elapsed * b.perSecond
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.lastRefill = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return 0, true
	}

	wait := time.Duration((1 - b.tokens) / b.perSecond * float64(time.Second))
	if wait < minWait {
		wait = minWait
	}
	return wait, false
}

// Tokens reports the current token count without refilling.
func (b *TokenBucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens
}

// Capacity reports the bucket size.
func (b *TokenBucket) Capacity() int {
	return int(b.capacity)
}
