package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcperrors "github.com/ajitpratap0/mcp-toolbridge/pkg/errors"
)

func fastPolicy(retries int) RetryPolicy {
	return RetryPolicy{MaxRetries: retries, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestNextDelayBounds(t *testing.T) {
	p := DefaultRetryPolicy()

	for attempt := 0; attempt < 12; attempt++ {
		base := p.BaseDelay * time.Duration(1<<attempt)
		if base > p.MaxDelay {
			base = p.MaxDelay
		}
		for i := 0; i < 20; i++ {
			d := p.NextDelay(attempt)
			assert.GreaterOrEqual(t, d, base)
			assert.LessOrEqual(t, d, base+p.Jitter)
			assert.LessOrEqual(t, d, p.MaxDelay+p.Jitter)
		}
	}
}

func TestNextDelayFloor(t *testing.T) {
	p := RetryPolicy{BaseDelay: 0, MaxDelay: 0}
	assert.Equal(t, 10*time.Millisecond, p.NextDelay(0))
	assert.Equal(t, 10*time.Millisecond, p.NextDelay(-3))
}

func TestDefaultRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("read tcp: i/o timeout"), true},
		{errors.New("request timed out"), true},
		{errors.New("HTTP 429 Too Many Requests"), true},
		{errors.New("rate limit exceeded"), true},
		{errors.New("upstream returned 503"), true},
		{errors.New("bad gateway 502"), true},
		{errors.New("500 internal"), true},
		{errors.New("invalid argument"), false},
		{mcperrors.RateLimited("tavily", nil), true},
		{mcperrors.Server5xx("tavily", 504, nil), true},
		{mcperrors.AuthMismatch("", errors.New("401 timeout")), false},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, DefaultRetryable(c.err), "err=%v", c.err)
	}
}

func TestInvokeSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	got, err := Invoke(context.Background(), fastPolicy(3), nil, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("503 unavailable")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestInvokeStopsOnNonRetryable(t *testing.T) {
	calls := 0
	boom := errors.New("invalid query")
	_, err := Invoke(context.Background(), fastPolicy(5), nil, func(context.Context) (int, error) {
		calls++
		return 0, boom
	})

	assert.Same(t, boom, err, "the original error must come back unchanged")
	assert.Equal(t, 1, calls)
}

func TestInvokeExhaustsRetries(t *testing.T) {
	for _, retries := range []int{0, 1, 3} {
		calls := 0
		var last error
		_, err := Invoke(context.Background(), fastPolicy(retries), nil, func(context.Context) (int, error) {
			calls++
			last = fmt.Errorf("timeout #%d", calls)
			return 0, last
		})

		assert.Equal(t, retries+1, calls)
		assert.Same(t, last, err)
	}
}

func TestInvokeOnRetryHook(t *testing.T) {
	p := fastPolicy(2)
	var attempts []int
	p.OnRetry = func(attempt int, _ error, delay time.Duration) {
		attempts = append(attempts, attempt)
		assert.GreaterOrEqual(t, delay, 10*time.Millisecond)
	}

	_, _ = Invoke(context.Background(), p, func(error) bool { return true }, func(context.Context) (int, error) {
		return 0, errors.New("x")
	})
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestInvokeHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}

	calls := 0
	_, err := Invoke(ctx, p, nil, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("timeout")
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
