// Package hrtqueue implements the single high-priority thread that dispatches due WorkItems,
// paced by microsecond statistics. It is the soft-realtime heart of the framework; everything
// else schedules work through it rather than running its own timers, avoiding a per-driver
// thread explosion.
package hrtqueue

import (
	"context"
	"runtime"
	"sync"
	"time"

	rdkclock "github.com/edgeworks-io/hrtcore/clock"
	"github.com/edgeworks-io/hrtcore/logging"
	"github.com/edgeworks-io/hrtcore/syncutil"
	"github.com/edgeworks-io/hrtcore/utils"
	"github.com/edgeworks-io/hrtcore/work"
)

// idleSleepCeiling is the maximum time the dispatcher will sleep with nothing due.
const idleSleepCeiling = 10 * time.Second

// Queue is the dispatcher. There must be at most one per Framework.
type Queue struct {
	clock  *rdkclock.Clock
	logger logging.Logger

	mu    sync.Mutex
	items []*work.Item

	reschedule *syncutil.Obj
	workers    utils.StoppableWorkers

	running bool
}

// New returns a Queue bound to clk. The dispatcher goroutine is not started until Start is called.
func New(clk *rdkclock.Clock, logger logging.Logger) *Queue {
	return &Queue{
		clock:      clk,
		logger:     logger,
		reschedule: syncutil.New(),
	}
}

// Start launches the single dispatcher thread, pinned via runtime.LockOSThread and given
// SCHED_FIFO at the platform max priority on a best-effort basis.
func (q *Queue) Start() error {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = true
	q.mu.Unlock()

	q.workers = utils.NewStoppableWorkers(q.dispatcherLoop)
	return nil
}

func (q *Queue) dispatcherLoop(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := setRealtimeFIFO(); err != nil {
		q.logger.Warnw("could not set SCHED_FIFO; continuing on default scheduler", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		q.processOnce(ctx)
	}
}

// processOnce runs one scan-dispatch-sleep iteration of the dispatcher loop.
func (q *Queue) processOnce(ctx context.Context) {
	q.mu.Lock()
	wake := q.reschedule.Chan()

	nextSleep := idleSleepCeiling
	now := q.clock.NowUS()

	due := make([]*work.Item, 0)
	remaining := q.items[:0:0]
	for _, item := range q.items {
		elapsed := now - item.QueueTimeUS()
		delayUS := uint64(item.Delay().Microseconds())
		if elapsed >= delayUS {
			due = append(due, item)
			continue
		}
		remainingUS := delayUS - elapsed
		if remaining := time.Duration(remainingUS) * time.Microsecond; remaining < nextSleep {
			nextSleep = remaining
		}
		remaining = append(remaining, item)
	}
	q.items = remaining

	for _, item := range due {
		item.UpdateStats(now)
	}

	q.mu.Unlock()

	// Callbacks always run with the dispatcher lock released: a callback may legally call back
	// into ScheduleWorkItem, which reacquires the lock itself.
	for _, item := range due {
		q.invoke(item)
	}

	deadline := q.clock.OffsetToAbsolute(now + uint64(nextSleep.Microseconds()))
	q.logger.Debugw("dispatcher sleeping until next deadline", "deadline", deadline, "pending", len(remaining))

	// Race the reschedule signal against a timer sourced from the same clock (rather than the
	// wall-clock timer syncutil.Obj.Wait would use), so tests can drive the dispatcher
	// deterministically with clock.NewMock(). The reschedule channel was taken under the lock at
	// the top of this iteration, so any ScheduleWorkItem since then (including one made by a
	// callback above) wakes this wait.
	timer := q.clock.Underlying().Timer(nextSleep)
	defer timer.Stop()

	select {
	case <-wake:
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (q *Queue) invoke(item *work.Item) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Errorw("work item callback panicked; dispatcher continues",
				"handle", item.Handle(), "panic", r)
		}
	}()
	item.Invoke()
}

// ScheduleWorkItem sets item.queueTime = now, appends it to the dispatch list, and signals the
// reschedule condition variable so a sleeping dispatcher wakes up to consider it. Scheduling the
// same item twice is a caller error: the queue does not deduplicate, but it also must not corrupt
// its own list, so a duplicate schedule is detected and rejected with a log rather than silently
// double-linking the item.
func (q *Queue) ScheduleWorkItem(item *work.Item) {
	q.mu.Lock()
	for _, existing := range q.items {
		if existing == item {
			q.mu.Unlock()
			q.logger.Errorw("work item scheduled twice; ignoring duplicate", "handle", item.Handle())
			return
		}
	}
	item.SetQueueTimeUS(q.clock.NowUS())
	q.items = append(q.items, item)
	q.mu.Unlock()

	q.reschedule.Signal()
}

// Dequeue removes item from the pending list if present, returning whether it was found. It is
// used by work.Manager.Destroy to atomically de-queue an item before removing it from the handle
// table, closing a use-after-free race where a concurrent dispatcher scan could otherwise fire a
// callback for an item that's mid-destruction.
func (q *Queue) Dequeue(item *work.Item) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for idx, existing := range q.items {
		if existing == item {
			q.items = append(q.items[:idx], q.items[idx+1:]...)
			return true
		}
	}
	return false
}

// ClearAll empties the pending list without touching the items themselves.
func (q *Queue) ClearAll() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}

// Len reports how many items are currently pending, for diagnostics.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Shutdown signals the dispatcher thread to exit and waits for it to actually stop: signal first,
// then join, so a caller never observes Shutdown returning while the thread is still running.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	workers := q.workers
	q.mu.Unlock()

	if workers != nil {
		workers.Stop()
	}
}
