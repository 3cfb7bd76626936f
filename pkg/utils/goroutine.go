// Package utils holds test support shared across packages.
package utils

import (
	"runtime"
	"testing"
	"time"
)

// GoroutineLeakDetector compares goroutine counts before and after a block of
// work. Sessions, runtimes and the client all own goroutines that must be
// gone after Close; tests use this to prove it.
type GoroutineLeakDetector struct {
	t              testing.TB
	initialCount   int
	allowedGrowth  int
	checkInterval  time.Duration
	stabilizeDelay time.Duration
	deadline       time.Duration
}

// NewGoroutineLeakDetector creates a new goroutine leak detector
func NewGoroutineLeakDetector(t testing.TB) *GoroutineLeakDetector {
	return &GoroutineLeakDetector{
		t:              t,
		checkInterval:  50 * time.Millisecond,
		stabilizeDelay: 100 * time.Millisecond,
		deadline:       3 * time.Second,
	}
}

// Start records the initial goroutine count
func (d *GoroutineLeakDetector) Start() {
	time.Sleep(d.stabilizeDelay)
	d.initialCount = runtime.NumGoroutine()
}

// Check polls until the count is back within the allowed growth or the
// deadline passes, then reports a leak with all stacks.
func (d *GoroutineLeakDetector) Check() {
	d.t.Helper()

	final := runtime.NumGoroutine()
	for end := time.Now().Add(d.deadline); time.Now().Before(end); {
		final = runtime.NumGoroutine()
		if final-d.initialCount <= d.allowedGrowth {
			return
		}
		time.Sleep(d.checkInterval)
	}

	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	d.t.Errorf("goroutine leak: started with %d, ended with %d (allowed growth %d)\n%s",
		d.initialCount, final, d.allowedGrowth, buf[:n])
}

// SetAllowedGrowth sets the number of goroutines allowed to grow
func (d *GoroutineLeakDetector) SetAllowedGrowth(n int) *GoroutineLeakDetector {
	d.allowedGrowth = n
	return d
}

// SetDeadline bounds how long Check waits for goroutines to exit.
func (d *GoroutineLeakDetector) SetDeadline(deadline time.Duration) *GoroutineLeakDetector {
	d.deadline = deadline
	return d
}

// VerifyNoLeak runs fn between Start and Check.
func VerifyNoLeak(t testing.TB, fn func()) {
	t.Helper()
	d := NewGoroutineLeakDetector(t)
	d.Start()
	fn()
	d.Check()
}
