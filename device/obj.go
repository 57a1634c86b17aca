package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edgeworks-io/hrtcore/logging"
	"github.com/edgeworks-io/hrtcore/utils"
	"github.com/edgeworks-io/hrtcore/work"
)

// unregisteredInstance is the sentinel driver_instance value before registration and after
// UnregisterDriver.
const unregisteredInstance = -1

// Measurer is the one capability every driver must provide: a bounded, non-blocking sample pass
// invoked on the dispatcher thread. A driver opts into it as an interface rather than through a
// virtual method with a cast-based override.
type Measurer interface {
	Measure(ctx context.Context) error
}

// IOCtler is an optional capability; a driver implements it to accept DevMgr-routed ioctls.
type IOCtler interface {
	DevIoctl(cmd int, arg []byte) ([]byte, error)
}

// Reader is an optional capability for drivers that expose raw reads.
type Reader interface {
	DevRead(buf []byte) (int, error)
}

// Writer is an optional capability for drivers that accept raw writes.
type Writer interface {
	DevWrite(buf []byte) (int, error)
}

// Driver is the interface a driver constructed through the model registry must satisfy: it must
// provide Measure, and it must embed Base (whose DevBase accessor is promoted automatically to
// any type embedding it).
type Driver interface {
	Measurer
	DevBase() *Base
}

// Base is the embeddable driver instance. Concrete drivers embed Base and implement Measurer (and
// optionally IOCtler/Reader/Writer); Base itself provides registration bookkeeping, scheduling,
// and the observer/notify plumbing common to every driver.
type Base struct {
	mu sync.Mutex

	name            string
	devBasePath     string
	devInstancePath string
	sampleInterval  time.Duration
	id              ID
	driverInstance  int
	workHandle      work.Handle
	observers       map[*Handle]struct{}

	self   Measurer
	workMgr *work.Manager
	devMgr  *Manager
	logger  logging.Logger
}

// Init wires a freshly-constructed driver's Base. self must be the concrete driver embedding this
// Base (so the dispatcher trampoline can call self.Measure); it is usually the value returned by
// the driver's constructor, e.g. `d := &myDriver{}; d.Init(d, ...)`.
func (b *Base) Init(self Measurer, name, devBasePath string, sampleInterval time.Duration, id ID, workMgr *work.Manager, devMgr *Manager, logger logging.Logger) {
	b.self = self
	b.name = name
	b.devBasePath = devBasePath
	b.sampleInterval = sampleInterval
	b.id = id
	b.driverInstance = unregisteredInstance
	b.workMgr = workMgr
	b.devMgr = devMgr
	b.logger = logger
	b.observers = make(map[*Handle]struct{})
}

// Name returns the driver's stable short name.
func (b *Base) Name() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.name
}

// BasePath returns the configured device base path, e.g. "/dev/sensor".
func (b *Base) BasePath() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.devBasePath
}

// InstancePath returns base_path + "/" + instance, empty until registered.
func (b *Base) InstancePath() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.devInstancePath
}

// Instance returns the assigned instance index, or -1 if unregistered.
func (b *Base) Instance() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.driverInstance
}

// IsRegistered reports whether the driver currently holds a valid instance slot.
func (b *Base) IsRegistered() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.driverInstance != unregisteredInstance
}

// Self returns the concrete driver this Base was initialized with, for use by
// GetDevObjByHandle's type assertion back to the driver's concrete type.
func (b *Base) Self() interface{} {
	return b.self
}

// DevBase returns b itself, letting code holding only a Driver interface value reach the
// embedded Base's registration/lifecycle methods.
func (b *Base) DevBase() *Base {
	return b
}

// ID returns the packed device identifier.
func (b *Base) ID() ID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.id
}

// SampleInterval returns the currently configured sampling period.
func (b *Base) SampleInterval() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sampleInterval
}

// SetSampleInterval updates the interval used by subsequent reschedules; an already-queued fire
// uses the delay it was scheduled with.
func (b *Base) SetSampleInterval(d time.Duration) {
	b.mu.Lock()
	b.sampleInterval = d
	b.mu.Unlock()
}

func (b *Base) setRegistration(instance int) {
	b.mu.Lock()
	b.driverInstance = instance
	b.devInstancePath = fmt.Sprintf("%s/%d", b.devBasePath, instance)
	b.mu.Unlock()
}

func (b *Base) clearRegistration() {
	b.mu.Lock()
	b.driverInstance = unregisteredInstance
	b.devInstancePath = ""
	b.mu.Unlock()
}

func (b *Base) addHandle(h *Handle) {
	b.mu.Lock()
	b.observers[h] = struct{}{}
	b.mu.Unlock()
}

func (b *Base) removeHandle(h *Handle) {
	b.mu.Lock()
	delete(b.observers, h)
	b.mu.Unlock()
}

func (b *Base) observerSnapshot() []*Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Handle, 0, len(b.observers))
	for h := range b.observers {
		out = append(out, h)
	}
	return out
}

// Start creates and schedules a WorkItem that periodically invokes Measure. Idempotent: calling
// Start on an already-started driver is a no-op.
func (b *Base) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.driverInstance == unregisteredInstance {
		b.mu.Unlock()
		return utils.ErrNotFound
	}
	if b.workHandle != 0 {
		b.mu.Unlock()
		return nil
	}
	self := b.self
	interval := b.sampleInterval
	b.mu.Unlock()

	handle := b.workMgr.Create(func(arg interface{}, wh work.Handle) {
		b.trampoline(ctx, self, wh)
	}, nil, interval)

	b.mu.Lock()
	b.workHandle = handle
	b.mu.Unlock()

	b.workMgr.Schedule(handle)
	return nil
}

// trampoline runs on the dispatcher thread: invoke Measure, then reschedule at the (possibly
// updated) sample interval, turning a periodic read loop into discrete dispatcher reinsertions.
func (b *Base) trampoline(ctx context.Context, self Measurer, handle work.Handle) {
	if err := self.Measure(ctx); err != nil {
		b.logger.Warnw("measure failed", "driver", b.name, "error", err)
	}

	b.mu.Lock()
	active := b.workHandle == handle
	interval := b.sampleInterval
	b.mu.Unlock()
	if !active {
		return
	}
	if item, err := b.workMgr.Get(handle); err == nil {
		item.SetDelay(interval)
	}
	b.workMgr.Schedule(handle)
}

// Stop destroys the driver's WorkItem, if any. Idempotent.
func (b *Base) Stop() error {
	b.mu.Lock()
	handle := b.workHandle
	b.mu.Unlock()
	if handle == 0 {
		return nil
	}
	if err := b.workMgr.Destroy(&handle); err != nil {
		return err
	}
	b.mu.Lock()
	b.workHandle = 0
	b.mu.Unlock()
	return nil
}

// DevIoctl routes to the driver's IOCtler implementation, or ErrUnsupported.
func (b *Base) DevIoctl(cmd int, arg []byte) ([]byte, error) {
	if ioctler, ok := b.self.(IOCtler); ok {
		return ioctler.DevIoctl(cmd, arg)
	}
	return nil, utils.ErrUnsupported
}

// DevRead routes to the driver's Reader implementation, or ErrUnsupported.
func (b *Base) DevRead(buf []byte) (int, error) {
	if reader, ok := b.self.(Reader); ok {
		return reader.DevRead(buf)
	}
	return 0, utils.ErrUnsupported
}

// DevWrite routes to the driver's Writer implementation, or ErrUnsupported.
func (b *Base) DevWrite(buf []byte) (int, error) {
	if writer, ok := b.self.(Writer); ok {
		return writer.DevWrite(buf)
	}
	return 0, utils.ErrUnsupported
}

// UpdateNotify must be called by the driver after publishing new data; it delegates to
// DevMgr.UpdateNotify so every handle currently parked on WaitForUpdate wakes up.
func (b *Base) UpdateNotify() {
	b.devMgr.UpdateNotify(b)
}
