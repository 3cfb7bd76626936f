package resilience

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"math"
	"strings"
	"time"

	mcperrors "github.com/ajitpratap0/mcp-toolbridge/pkg/errors"
)

// RetryPolicy describes how many times, and how far apart, a failed
// operation is re-attempted.
type RetryPolicy struct {
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
	Jitter     time.Duration `yaml:"jitter"`

	// OnRetry, if set, is called before each sleep.
	OnRetry func(attempt int, err error, delay time.Duration) `yaml:"-"`
}

// DefaultRetryPolicy returns 3 retries, 350ms base, 8s cap, 200ms jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  350 * time.Millisecond,
		MaxDelay:   8 * time.Second,
		Jitter:     200 * time.Millisecond,
	}
}

// NextDelay returns max(10ms, min(MaxDelay, BaseDelay*2^attempt) + U(0, Jitter)).
func (p RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	backoff := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if backoff > float64(p.MaxDelay) {
		backoff = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		backoff += secureRandFloat64() * float64(p.Jitter)
	}
	delay := time.Duration(backoff)
	if delay < minWait {
		delay = minWait
	}
	return delay
}

// secureRandFloat64 returns a float in [0, 1).
func secureRandFloat64() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0.5
	}
	return float64(binary.BigEndian.Uint64(buf[:])>>11) / float64(1<<53)
}

var retryMarkers = []string{"timeout", "timed out", "429", "rate", "503", "502", "500"}

// DefaultRetryable decides whether err is transient. Auth mismatches never
// are. Typed rate-limit, 5xx and timeout errors are. Anything else is judged
// by the markers in its text.
func DefaultRetryable(err error) bool {
	if err == nil {
		return false
	}
	if mcperrors.IsCode(err, mcperrors.CodeAuthMismatch) {
		return false
	}
	if mcperrors.IsRetryable(err) {
		return true
	}
	text := strings.ToLower(err.Error())
	for _, marker := range retryMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// Invoke runs op, retrying while retryable(err) holds and attempts remain.
// The last error is returned unchanged. A nil retryable means DefaultRetryable.
func Invoke[T any](ctx context.Context, p RetryPolicy, retryable func(error) bool, op func(context.Context) (T, error)) (T, error) {
	if retryable == nil {
		retryable = DefaultRetryable
	}
	for attempt := 0; ; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if attempt >= p.MaxRetries || !retryable(err) {
			return v, err
		}

		delay := p.NextDelay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err, delay)
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}
