package resilience

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestTokenBucketStartsFull(t *testing.T) {
	clock := NewManualClock(epoch)
	b := NewTokenBucket(5, WithBucketClock(clock))

	for i := 0; i < 5; i++ {
		b.Acquire()
	}
	assert.Equal(t, epoch, clock.Now(), "the initial burst must not wait")
	assert.InDelta(t, 0, b.Tokens(), 1e-9)
}

func TestTokenBucketWaitsForRefill(t *testing.T) {
	clock := NewManualClock(epoch)
	b := NewTokenBucket(60, WithBurst(1), WithBucketClock(clock))

	b.Acquire()
	b.Acquire()

	waited := clock.Now().Sub(epoch)
	assert.GreaterOrEqual(t, waited, time.Second-time.Millisecond)
	assert.Less(t, waited, time.Second+50*time.Millisecond)
}

func TestTokenBucketTrailingWindow(t *testing.T) {
	for _, rpm := range []int{1, 3, 5, 20, 60} {
		clock := NewManualClock(epoch)
		b := NewTokenBucket(rpm, WithBucketClock(clock))

		// drain the initial burst
		for i := 0; i < rpm; i++ {
			b.Acquire()
		}

		var stamps []time.Time
		for i := 0; i < 4*rpm+5; i++ {
			b.Acquire()
			stamps = append(stamps, clock.Now())
		}

		// Allow a little slack for float rounding at nanosecond resolution.
		window := time.Minute - 50*time.Millisecond
		for i, end := range stamps {
			count := 0
			for j := 0; j <= i; j++ {
				if end.Sub(stamps[j]) < window {
					count++
				}
			}
			require.LessOrEqualf(t, count, rpm, "rpm=%d: %d acquisitions inside one window ending at #%d", rpm, count, i)
		}
	}
}

func TestTokenBucketCapsAtCapacity(t *testing.T) {
	clock := NewManualClock(epoch)
	b := NewTokenBucket(10, WithBurst(3), WithBucketClock(clock))
	assert.Equal(t, 3, b.Capacity())

	for i := 0; i < 3; i++ {
		b.Acquire()
	}
	clock.Advance(time.Hour)
	for i := 0; i < 3; i++ {
		b.Acquire()
	}
	assert.Equal(t, epoch.Add(time.Hour), clock.Now(), "refill must cap at capacity, not accrue an hour of tokens")

	b.Acquire()
	assert.True(t, clock.Now().After(epoch.Add(time.Hour)), "fourth acquisition after refill must wait")
}

func TestTokenBucketMinimumRPM(t *testing.T) {
	b := NewTokenBucket(0)
	assert.Equal(t, 1, b.Capacity())
}

func TestAcquireContextCancelled(t *testing.T) {
	b := NewTokenBucket(1)
	b.Acquire()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := b.AcquireContext(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestTokenBucketConcurrentAcquire(t *testing.T) {
	clock := NewManualClock(epoch)
	b := NewTokenBucket(100000, WithBucketClock(clock))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b.Acquire()
			}
		}()
	}
	wg.Wait()

	assert.InDelta(t, 99000, b.Tokens(), 1e-6)
}
