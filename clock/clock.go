// Package clock provides the monotonic microsecond time source shared by the dispatcher and
// everything that schedules work against it. It wraps github.com/benbjohnson/clock.Clock so that
// tests can substitute a clock.Mock and drive dispatcher pacing deterministically instead of
// sleeping in wall-clock time.
package clock

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Clock is the time source every hrtcore component is constructed with.
type Clock struct {
	underlying clock.Clock

	epochOnce sync.Once
	epoch     time.Time
}

// New returns a Clock backed by the real wall clock.
func New() *Clock {
	return Wrap(clock.New())
}

// Wrap adapts an existing benbjohnson/clock.Clock (typically clock.New() in production or
// clock.NewMock() in tests) into a Clock.
func Wrap(underlying clock.Clock) *Clock {
	return &Clock{underlying: underlying}
}

// Underlying exposes the wrapped clock.Clock, e.g. so a test can type-assert to *clock.Mock and
// call Add/Set on it.
func (c *Clock) Underlying() clock.Clock {
	return c.underlying
}

func (c *Clock) captureEpoch() {
	c.epochOnce.Do(func() {
		c.epoch = c.underlying.Now()
	})
}

// NowUS returns the number of microseconds elapsed since this Clock's first call to NowUS (or
// OffsetToAbsolute, whichever happens first), monotonic non-decreasing for the lifetime of the
// process.
func (c *Clock) NowUS() uint64 {
	c.captureEpoch()
	elapsed := c.underlying.Now().Sub(c.epoch)
	if elapsed < 0 {
		// A non-monotonic clock source would be a SystemError at init; defensively floor to 0
		// rather than wrapping around to a huge uint64.
		return 0
	}
	return uint64(elapsed.Microseconds())
}

// AbsoluteFuture returns an absolute deadline d in the future, suitable for a timed condition
// wait.
func (c *Clock) AbsoluteFuture(d time.Duration) time.Time {
	return c.underlying.Now().Add(d)
}

// OffsetToAbsolute converts an offset (in microseconds from this Clock's epoch) back into an
// absolute deadline.
func (c *Clock) OffsetToAbsolute(offsetUS uint64) time.Time {
	c.captureEpoch()
	return c.epoch.Add(time.Duration(offsetUS) * time.Microsecond)
}

// After is a thin passthrough to the underlying clock, for components that need a timer channel
// directly.
func (c *Clock) After(d time.Duration) <-chan time.Time {
	return c.underlying.After(d)
}
