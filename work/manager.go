package work

import (
	"sync"
	"time"

	"github.com/edgeworks-io/hrtcore/logging"
	"github.com/edgeworks-io/hrtcore/utils"
)

// initialHandle is the first handle value ever issued.
const initialHandle = 1001

// Scheduler is the dispatcher-side contract WorkMgr needs: enqueue an item, and atomically
// dequeue one that may or may not currently be queued. Implemented by hrtqueue.Queue; kept as an
// interface here so this package does not depend on the dispatcher package (that dependency runs
// the other way: hrtqueue depends on work.Item).
type Scheduler interface {
	ScheduleWorkItem(item *Item)
	Dequeue(item *Item) bool
}

// Manager owns the Handle -> *Item mapping: a mutex-guarded table keyed by a monotonically
// increasing handle counter.
type Manager struct {
	mu         sync.Mutex
	items      map[Handle]*Item
	nextHandle uint64
	scheduler  Scheduler
	logger     logging.Logger
}

// NewManager returns a Manager that hands freshly-scheduled items to scheduler.
func NewManager(scheduler Scheduler, logger logging.Logger) *Manager {
	return &Manager{
		items:      make(map[Handle]*Item),
		nextHandle: initialHandle,
		scheduler:  scheduler,
		logger:     logger,
	}
}

// Create allocates a WorkItem with a freshly-minted handle, stores it, and returns the handle.
// The handle counter is monotonic for the lifetime of the Manager and is never reused.
func (m *Manager) Create(cb Callback, arg interface{}, delay time.Duration) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	handle := Handle(m.nextHandle)
	m.nextHandle++

	m.items[handle] = NewItem(cb, arg, delay, handle)
	return handle
}

// Destroy removes the item for *handle, first asking the scheduler to dequeue it so a concurrent
// dispatcher scan can never fire a stale callback after destruction. *handle is set to 0
// regardless of whether it was found.
func (m *Manager) Destroy(handle *Handle) error {
	m.mu.Lock()
	if item, ok := m.items[*handle]; ok {
		if m.scheduler.Dequeue(item) {
			m.logger.Debugw("dequeued work item on destroy", "handle", item.Handle())
		}
		delete(m.items, *handle)
	}
	m.mu.Unlock()

	*handle = 0
	return nil
}

// Schedule looks up handle and, if present, hands it to the scheduler, returning true. Returns
// false if the handle is unknown (already destroyed, or never created).
func (m *Manager) Schedule(handle Handle) bool {
	m.mu.Lock()
	item, ok := m.items[handle]
	m.mu.Unlock()

	if !ok {
		m.logger.Warnw("schedule requested for unknown work handle", "handle", handle)
		return false
	}
	m.scheduler.ScheduleWorkItem(item)
	return true
}

// Get returns the item for handle, mainly for stats inspection by callers that hold a WorkHandle.
func (m *Manager) Get(handle Handle) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[handle]
	if !ok {
		return nil, utils.NewNotFoundError("work handle")
	}
	return item, nil
}

// List returns a diagnostic snapshot of every handle currently registered.
func (m *Manager) List() []Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	handles := make([]Handle, 0, len(m.items))
	for h := range m.items {
		handles = append(handles, h)
	}
	return handles
}

// Clear empties the handle table without touching the scheduler, returning the handles that were
// still live so the caller can log residual state during shutdown.
func (m *Manager) Clear() []Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	handles := make([]Handle, 0, len(m.items))
	for h := range m.items {
		handles = append(handles, h)
	}
	m.items = make(map[Handle]*Item)
	return handles
}
