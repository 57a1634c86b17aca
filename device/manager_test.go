package device

import (
	"context"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/edgeworks-io/hrtcore/logging"
	"github.com/edgeworks-io/hrtcore/work"
)

type fakeScheduler struct{}

func (fakeScheduler) ScheduleWorkItem(*work.Item) {}
func (fakeScheduler) Dequeue(*work.Item) bool      { return true }

type probeDriver struct {
	Base
	measureErr error
	measures   int
}

func (p *probeDriver) Measure(ctx context.Context) error {
	p.measures++
	return p.measureErr
}

func newProbe(t *testing.T, wm *work.Manager, dm *Manager, name string, id ID) *probeDriver {
	p := &probeDriver{}
	p.Init(p, name, "/dev/probe", time.Millisecond, id, wm, dm, logging.NewTestLogger(t))
	return p
}

func TestRegisterDriverReachableFromBothIndexes(t *testing.T) {
	dm := NewManager(logging.NewTestLogger(t))
	wm := work.NewManager(&fakeScheduler{}, logging.NewTestLogger(t))
	p := newProbe(t, wm, dm, "probe", PackID(BusVirt, 0, 1, 1))

	instance, err := dm.RegisterDriver(&p.Base)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, instance, test.ShouldEqual, 0)

	byName, ok := dm.GetDevObjByName("probe", 0)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, byName, test.ShouldEqual, &p.Base)

	byID, ok := dm.GetDevObjByID(p.ID())
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, byID, test.ShouldEqual, &p.Base)

	test.That(t, p.InstancePath(), test.ShouldEqual, "/dev/probe/0")
}

func TestRegisterDriverNoFreeInstance(t *testing.T) {
	dm := NewManager(logging.NewTestLogger(t))
	wm := work.NewManager(&fakeScheduler{}, logging.NewTestLogger(t))

	for i := 0; i < MaxInstances; i++ {
		p := newProbe(t, wm, dm, "probe", PackID(BusVirt, 0, uint8(i), 1))
		_, err := dm.RegisterDriver(&p.Base)
		test.That(t, err, test.ShouldBeNil)
	}

	overflow := newProbe(t, wm, dm, "probe", PackID(BusVirt, 0, 99, 1))
	_, err := dm.RegisterDriver(&overflow.Base)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRegisterDriverIDCollisionRollsBackNameIndex(t *testing.T) {
	dm := NewManager(logging.NewTestLogger(t))
	wm := work.NewManager(&fakeScheduler{}, logging.NewTestLogger(t))

	id := PackID(BusVirt, 0, 5, 5)
	first := newProbe(t, wm, dm, "probe", id)
	_, err := dm.RegisterDriver(&first.Base)
	test.That(t, err, test.ShouldBeNil)

	second := newProbe(t, wm, dm, "other", id)
	_, err = dm.RegisterDriver(&second.Base)
	test.That(t, err, test.ShouldNotBeNil)

	// "other" must not have left a dangling name-index entry at instance 0.
	_, ok := dm.GetDevObjByName("other", 0)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestGetHandleAndReleaseRoundTrip(t *testing.T) {
	dm := NewManager(logging.NewTestLogger(t))
	wm := work.NewManager(&fakeScheduler{}, logging.NewTestLogger(t))
	p := newProbe(t, wm, dm, "probe", PackID(BusVirt, 0, 1, 1))
	_, err := dm.RegisterDriver(&p.Base)
	test.That(t, err, test.ShouldBeNil)

	h, err := dm.GetHandle("/dev/probe/0")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, h.Valid(), test.ShouldBeTrue)

	got, err := GetDevObjByHandle[*probeDriver](dm, h, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldEqual, p)

	test.That(t, dm.ReleaseHandle(h), test.ShouldBeNil)
	test.That(t, h.Valid(), test.ShouldBeFalse)
	test.That(t, dm.ReleaseHandle(h), test.ShouldBeNil)
}

func TestGetHandleUnknownPath(t *testing.T) {
	dm := NewManager(logging.NewTestLogger(t))
	_, err := dm.GetHandle("/dev/nope/0")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestWaitForUpdateFansOutToAllObservers(t *testing.T) {
	dm := NewManager(logging.NewTestLogger(t))
	wm := work.NewManager(&fakeScheduler{}, logging.NewTestLogger(t))
	p := newProbe(t, wm, dm, "probe", PackID(BusVirt, 0, 1, 1))
	_, err := dm.RegisterDriver(&p.Base)
	test.That(t, err, test.ShouldBeNil)

	h1, err := dm.GetHandle("/dev/probe/0")
	test.That(t, err, test.ShouldBeNil)
	h2, err := dm.GetHandle("/dev/probe/0")
	test.That(t, err, test.ShouldBeNil)

	done := make(chan struct{}, 2)
	go func() {
		out, err := dm.WaitForUpdate(context.Background(), []*Handle{h1}, time.Second)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, len(out), test.ShouldEqual, 1)
		done <- struct{}{}
	}()
	go func() {
		out, err := dm.WaitForUpdate(context.Background(), []*Handle{h2}, time.Second)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, len(out), test.ShouldEqual, 1)
		done <- struct{}{}
	}()

	time.Sleep(10 * time.Millisecond)
	dm.UpdateNotify(&p.Base)

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for WaitForUpdate fan-out")
		}
	}
}

func TestWaitForUpdateTimesOutWithoutUpdate(t *testing.T) {
	dm := NewManager(logging.NewTestLogger(t))
	wm := work.NewManager(&fakeScheduler{}, logging.NewTestLogger(t))
	p := newProbe(t, wm, dm, "probe", PackID(BusVirt, 0, 1, 1))
	_, err := dm.RegisterDriver(&p.Base)
	test.That(t, err, test.ShouldBeNil)

	h, err := dm.GetHandle("/dev/probe/0")
	test.That(t, err, test.ShouldBeNil)

	_, err = dm.WaitForUpdate(context.Background(), []*Handle{h}, 20*time.Millisecond)
	test.That(t, err, test.ShouldNotBeNil)
}
