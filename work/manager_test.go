package work

import (
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/edgeworks-io/hrtcore/logging"
)

type fakeScheduler struct {
	scheduled []*Item
	dequeued  []*Item
}

func (f *fakeScheduler) ScheduleWorkItem(item *Item) {
	f.scheduled = append(f.scheduled, item)
}

func (f *fakeScheduler) Dequeue(item *Item) bool {
	for _, i := range f.scheduled {
		if i == item {
			f.dequeued = append(f.dequeued, item)
			return true
		}
	}
	return false
}

func TestCreateAssignsMonotonicHandlesStartingAt1001(t *testing.T) {
	m := NewManager(&fakeScheduler{}, logging.NewTestLogger(t))

	h1 := m.Create(func(interface{}, Handle) {}, nil, time.Millisecond)
	h2 := m.Create(func(interface{}, Handle) {}, nil, time.Millisecond)

	test.That(t, h1, test.ShouldEqual, Handle(1001))
	test.That(t, h2, test.ShouldEqual, Handle(1002))
}

func TestScheduleHandsItemToScheduler(t *testing.T) {
	sched := &fakeScheduler{}
	m := NewManager(sched, logging.NewTestLogger(t))

	h := m.Create(func(interface{}, Handle) {}, nil, time.Millisecond)
	test.That(t, m.Schedule(h), test.ShouldBeTrue)
	test.That(t, len(sched.scheduled), test.ShouldEqual, 1)

	test.That(t, m.Schedule(Handle(9999)), test.ShouldBeFalse)
}

func TestDestroyDequeuesAndZeroesHandle(t *testing.T) {
	sched := &fakeScheduler{}
	m := NewManager(sched, logging.NewTestLogger(t))

	h := m.Create(func(interface{}, Handle) {}, nil, time.Millisecond)
	m.Schedule(h)

	err := m.Destroy(&h)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, h, test.ShouldEqual, Handle(0))
	test.That(t, len(sched.dequeued), test.ShouldEqual, 1)

	_, getErr := m.Get(Handle(1001))
	test.That(t, getErr, test.ShouldNotBeNil)
}

func TestDestroyTwiceIsANoOp(t *testing.T) {
	m := NewManager(&fakeScheduler{}, logging.NewTestLogger(t))
	h := m.Create(func(interface{}, Handle) {}, nil, time.Millisecond)

	test.That(t, m.Destroy(&h), test.ShouldBeNil)
	test.That(t, m.Destroy(&h), test.ShouldBeNil)
	test.That(t, h, test.ShouldEqual, Handle(0))
}

func TestWorkHandlesAreNeverReused(t *testing.T) {
	m := NewManager(&fakeScheduler{}, logging.NewTestLogger(t))

	seen := map[Handle]bool{}
	for i := 0; i < 20; i++ {
		h := m.Create(func(interface{}, Handle) {}, nil, time.Millisecond)
		test.That(t, seen[h], test.ShouldBeFalse)
		seen[h] = true
		m.Destroy(&h)
	}
}

func TestItemStats(t *testing.T) {
	item := NewItem(func(interface{}, Handle) {}, nil, 10*time.Millisecond, Handle(1001))
	item.SetQueueTimeUS(1000)

	item.UpdateStats(11_000)
	stats := item.StatsSnapshot()
	test.That(t, stats.Last, test.ShouldEqual, uint64(11_000))
	test.That(t, stats.Min, test.ShouldEqual, uint64(10_000))
	test.That(t, stats.Max, test.ShouldEqual, uint64(10_000))
	test.That(t, stats.Count, test.ShouldEqual, uint64(1))

	item.UpdateStats(21_500)
	stats = item.StatsSnapshot()
	test.That(t, stats.Min, test.ShouldEqual, uint64(10_000))
	test.That(t, stats.Max, test.ShouldEqual, uint64(10_500))
	test.That(t, stats.Count, test.ShouldEqual, uint64(2))
	test.That(t, stats.AverageDelayUS(), test.ShouldEqual, uint64(10_250))

	item.ResetStats()
	stats = item.StatsSnapshot()
	test.That(t, stats.Count, test.ShouldEqual, uint64(0))
	test.That(t, stats.AverageDelayUS(), test.ShouldEqual, uint64(0))
}
