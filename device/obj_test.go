package device

import (
	"context"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/edgeworks-io/hrtcore/logging"
	"github.com/edgeworks-io/hrtcore/work"
)

type countingScheduler struct {
	scheduled []*work.Item
}

func (s *countingScheduler) ScheduleWorkItem(item *work.Item) {
	s.scheduled = append(s.scheduled, item)
}

func (s *countingScheduler) Dequeue(item *work.Item) bool {
	for i, it := range s.scheduled {
		if it == item {
			s.scheduled = append(s.scheduled[:i], s.scheduled[i+1:]...)
			return true
		}
	}
	return false
}

type bareDriver struct {
	Base
}

func (b *bareDriver) Measure(ctx context.Context) error { return nil }

func TestStartIsIdempotentAndRequiresRegistration(t *testing.T) {
	dm := NewManager(logging.NewTestLogger(t))
	sched := &countingScheduler{}
	wm := work.NewManager(sched, logging.NewTestLogger(t))

	d := &bareDriver{}
	d.Init(d, "bare", "/dev/bare", time.Millisecond, PackID(BusVirt, 0, 1, 1), wm, dm, logging.NewTestLogger(t))

	test.That(t, d.Start(context.Background()), test.ShouldNotBeNil)

	_, err := dm.RegisterDriver(&d.Base)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, d.Start(context.Background()), test.ShouldBeNil)
	test.That(t, len(sched.scheduled), test.ShouldEqual, 1)

	// Idempotent: calling Start again must not create a second WorkItem.
	test.That(t, d.Start(context.Background()), test.ShouldBeNil)
	test.That(t, len(sched.scheduled), test.ShouldEqual, 1)
}

func TestStopIsIdempotent(t *testing.T) {
	dm := NewManager(logging.NewTestLogger(t))
	sched := &countingScheduler{}
	wm := work.NewManager(sched, logging.NewTestLogger(t))

	d := &bareDriver{}
	d.Init(d, "bare", "/dev/bare", time.Millisecond, PackID(BusVirt, 0, 2, 1), wm, dm, logging.NewTestLogger(t))
	_, err := dm.RegisterDriver(&d.Base)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, d.Stop(), test.ShouldBeNil)

	test.That(t, d.Start(context.Background()), test.ShouldBeNil)
	test.That(t, d.Stop(), test.ShouldBeNil)
	test.That(t, d.Stop(), test.ShouldBeNil)
}

func TestDefaultCapabilitiesAreUnsupported(t *testing.T) {
	dm := NewManager(logging.NewTestLogger(t))
	wm := work.NewManager(&countingScheduler{}, logging.NewTestLogger(t))

	d := &bareDriver{}
	d.Init(d, "bare", "/dev/bare", time.Millisecond, PackID(BusVirt, 0, 3, 1), wm, dm, logging.NewTestLogger(t))

	_, err := d.DevIoctl(0, nil)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = d.DevRead(nil)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = d.DevWrite(nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSetSampleIntervalUpdatesSampleInterval(t *testing.T) {
	dm := NewManager(logging.NewTestLogger(t))
	wm := work.NewManager(&countingScheduler{}, logging.NewTestLogger(t))

	d := &bareDriver{}
	d.Init(d, "bare", "/dev/bare", time.Millisecond, PackID(BusVirt, 0, 4, 1), wm, dm, logging.NewTestLogger(t))
	d.SetSampleInterval(5 * time.Millisecond)
	test.That(t, d.SampleInterval(), test.ShouldEqual, 5*time.Millisecond)
}
