// Package work implements the scheduled work item and the handle registry that owns it: the
// record of a scheduled callback plus its pacing statistics, and the process-wide table that
// hands out stable handles for it. Scheduling and dequeuing are delegated to a Scheduler
// (implemented by hrtqueue.Queue) so this package has no dependency on the dispatcher itself.
package work

import (
	"sync"
	"time"
)

// Handle is an opaque identifier for a WorkItem. The zero value means "no handle."
type Handle uint64

// Callback is invoked by the dispatcher when a WorkItem comes due.
type Callback func(arg interface{}, handle Handle)

// Stats are the pacing counters: inter-fire spacing observed by the dispatcher, not callback
// runtime. All values are in microseconds.
type Stats struct {
	Last  uint64
	Min   uint64
	Max   uint64
	Total uint64
	Count uint64
}

// statSentinel marks "no prior fire" for Stats.Last/Min, the all-ones sentinel value.
const statSentinel = ^uint64(0)

// Item is a scheduled callback record.
type Item struct {
	mu sync.Mutex

	callback Callback
	arg      interface{}
	handle   Handle

	delay       time.Duration
	queueTimeUS uint64
	stats       Stats
}

// NewItem constructs an Item in its reset-stats state. Handle is assigned by the Manager that
// creates it.
func NewItem(cb Callback, arg interface{}, delay time.Duration, handle Handle) *Item {
	item := &Item{
		callback: cb,
		arg:      arg,
		delay:    delay,
		handle:   handle,
	}
	item.resetStatsLocked()
	return item
}

// Handle returns the WorkHandle this item is registered under.
func (i *Item) Handle() Handle { return i.handle }

// Delay returns the currently configured delay.
func (i *Item) Delay() time.Duration {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.delay
}

// SetDelay updates the item's delay. The dispatcher reads the delay on every scan, so the new
// value also applies to a fire that is already queued.
func (i *Item) SetDelay(d time.Duration) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.delay = d
}

// QueueTimeUS returns the microsecond timestamp at which this item was last (re)enqueued.
func (i *Item) QueueTimeUS() uint64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.queueTimeUS
}

// SetQueueTimeUS is called by the dispatcher's ScheduleWorkItem when the item is (re)enqueued.
func (i *Item) SetQueueTimeUS(us uint64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.queueTimeUS = us
}

// Invoke calls the underlying callback. It is the dispatcher's responsibility to call this with
// its own lock released.
func (i *Item) Invoke() {
	i.callback(i.arg, i.handle)
}

// UpdateStats computes delayObserved = now - (last == sentinel ? queueTime : last), folds it into
// min/max/total/count, and sets last = now. Called by the dispatcher at fire time, under its own
// lock, immediately before releasing that lock to invoke the callback.
func (i *Item) UpdateStats(nowUS uint64) {
	i.mu.Lock()
	defer i.mu.Unlock()

	reference := i.stats.Last
	if reference == statSentinel {
		reference = i.queueTimeUS
	}
	var observed uint64
	if nowUS > reference {
		observed = nowUS - reference
	}

	if i.stats.Min == statSentinel || observed < i.stats.Min {
		i.stats.Min = observed
	}
	if observed > i.stats.Max {
		i.stats.Max = observed
	}
	i.stats.Total += observed
	i.stats.Count++
	i.stats.Last = nowUS
}

// ResetStats restores the item to its initial, never-fired statistics state.
func (i *Item) ResetStats() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.resetStatsLocked()
}

func (i *Item) resetStatsLocked() {
	i.stats = Stats{Last: statSentinel, Min: statSentinel, Max: 0, Total: 0, Count: 0}
}

// StatsSnapshot returns a copy of the item's current pacing statistics.
func (i *Item) StatsSnapshot() Stats {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.stats
}

// AverageDelayUS returns Total/Count, or 0 if the item has never fired.
func (s Stats) AverageDelayUS() uint64 {
	if s.Count == 0 {
		return 0
	}
	return s.Total / s.Count
}
