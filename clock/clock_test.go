package clock

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"
)

func TestNowUSIsMonotonicFromFirstCall(t *testing.T) {
	mock := clock.NewMock()
	c := Wrap(mock)

	test.That(t, c.NowUS(), test.ShouldEqual, uint64(0))

	mock.Add(5 * time.Millisecond)
	test.That(t, c.NowUS(), test.ShouldEqual, uint64(5000))

	mock.Add(2500 * time.Microsecond)
	test.That(t, c.NowUS(), test.ShouldEqual, uint64(7500))
}

func TestOffsetToAbsoluteRoundTrips(t *testing.T) {
	mock := clock.NewMock()
	c := Wrap(mock)
	c.NowUS() // capture epoch

	deadline := c.OffsetToAbsolute(10_000)
	test.That(t, deadline.Equal(mock.Now().Add(10*time.Millisecond)), test.ShouldBeTrue)
}

func TestAbsoluteFuture(t *testing.T) {
	mock := clock.NewMock()
	c := Wrap(mock)

	future := c.AbsoluteFuture(250 * time.Millisecond)
	test.That(t, future.Equal(mock.Now().Add(250*time.Millisecond)), test.ShouldBeTrue)
}
