package device

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/edgeworks-io/hrtcore/logging"
	"github.com/edgeworks-io/hrtcore/syncutil"
	"github.com/edgeworks-io/hrtcore/utils"
)

// MaxInstances is the per-name driver cap.
const MaxInstances = 5

// Manager is the driver registry, path resolver, and handle/wait lifecycle manager. All state is
// guarded by a single mutex; it is never held across a callback or a condition-wait other than
// its own WaitForUpdate loop.
type Manager struct {
	mu sync.Mutex

	byName map[string][]*Base // index i == instance i; nil entry == free slot
	byID   map[ID]*Base

	logger logging.Logger
}

// NewManager returns an empty Manager.
func NewManager(logger logging.Logger) *Manager {
	return &Manager{
		byName: make(map[string][]*Base),
		byID:   make(map[ID]*Base),
		logger: logger,
	}
}

// RegisterDriver finds or creates a name bucket for obj.Name(), assigns the lowest free instance
// index, and inserts obj into the id index. The name-bucket reservation is rolled back via
// utils.Guard if the id-index insertion fails, so a failed registration never leaves a dangling
// name-index entry.
func (m *Manager) RegisterDriver(obj *Base) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := obj.Name()
	bucket := m.byName[name]

	instance := -1
	for i := 0; i < MaxInstances; i++ {
		if i >= len(bucket) || bucket[i] == nil {
			instance = i
			break
		}
	}
	if instance == -1 {
		return 0, utils.ErrNoFreeInstance
	}

	for len(bucket) <= instance {
		bucket = append(bucket, nil)
	}
	bucket[instance] = obj
	m.byName[name] = bucket

	guard := utils.NewGuard(func() {
		bucket[instance] = nil
	})
	defer guard.OnFail()

	id := obj.ID()
	if _, exists := m.byID[id]; exists {
		return 0, utils.NewAlreadyRegisteredError(fmt.Sprintf("device id %08x", uint32(id)))
	}
	m.byID[id] = obj

	obj.setRegistration(instance)
	guard.Success()
	m.logger.Debugw("driver registered", "name", name, "instance", instance, "id", fmt.Sprintf("%08x", uint32(id)))
	return instance, nil
}

// UnregisterDriver removes obj from both indexes and resets its instance to -1. The caller must
// have already stopped obj; the manager does not stop work on its behalf.
func (m *Manager) UnregisterDriver(obj *Base) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := obj.Name()
	instance := obj.Instance()
	if instance < 0 {
		return utils.ErrNotFound
	}

	bucket := m.byName[name]
	if instance < len(bucket) {
		bucket[instance] = nil
	}
	delete(m.byID, obj.ID())
	obj.clearRegistration()
	m.logger.Debugw("driver unregistered", "name", name, "instance", instance)
	return nil
}

// GetDevObjByName returns the DevObj registered at (name, instance), if any.
func (m *Manager) GetDevObjByName(name string, instance int) (*Base, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, ok := m.byName[name]
	if !ok || instance < 0 || instance >= len(bucket) || bucket[instance] == nil {
		return nil, false
	}
	return bucket[instance], true
}

// GetDevObjByID returns the DevObj registered under the packed id, if any.
func (m *Manager) GetDevObjByID(id ID) (*Base, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.byID[id]
	return obj, ok
}

// parsePath splits "<base>/<instance>" into its components.
func parsePath(path string) (basePath string, instance int, err error) {
	idx := strings.LastIndex(path, "/")
	if idx <= 0 || idx == len(path)-1 {
		return "", 0, utils.NewNotFoundError(path)
	}
	instance, convErr := strconv.Atoi(path[idx+1:])
	if convErr != nil || instance < 0 {
		return "", 0, utils.NewNotFoundError(path)
	}
	return path[:idx], instance, nil
}

// GetHandle parses path, locates the backing DevObj by its dev_base_path and instance, and opens
// a new Handle onto it, registering the handle in the DevObj's observer list.
func (m *Manager) GetHandle(path string) (*Handle, error) {
	basePath, instance, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	var found *Base
	for _, bucket := range m.byName {
		if instance < len(bucket) && bucket[instance] != nil && bucket[instance].BasePath() == basePath {
			found = bucket[instance]
			break
		}
	}
	m.mu.Unlock()

	if found == nil {
		return nil, utils.NewNotFoundError(path)
	}

	h := &Handle{obj: found}
	found.addHandle(h)
	return h, nil
}

// ReleaseHandle detaches h from its DevObj's observer list. Idempotent.
func (m *Manager) ReleaseHandle(h *Handle) error {
	h.mu.Lock()
	obj := h.obj
	h.obj = nil
	h.mu.Unlock()

	if obj != nil {
		obj.removeHandle(h)
	}
	return nil
}

// Clear empties both registry indexes, for use during Framework shutdown. It does not stop or
// otherwise touch the DevObjs themselves.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byName = make(map[string][]*Base)
	m.byID = make(map[ID]*Base)
}

// contains reports whether obj is still present in the id index, used by GetDevObjByHandle's
// checked mode.
func (m *Manager) contains(obj *Base) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byID[obj.ID()]
	return ok
}

// GetDevObjByHandle asserts h's referenced DevObj back to its concrete type T. Fast mode (checked
// == false) trusts the stored reference directly — an O(1) type assertion, no registry lookup.
// Checked mode additionally verifies the DevObj is still present in m's id index before
// asserting, guarding against a handle outliving the driver it once pointed at.
func GetDevObjByHandle[T any](m *Manager, h *Handle, checked bool) (T, error) {
	var zero T

	h.mu.Lock()
	obj := h.obj
	h.mu.Unlock()

	if obj == nil {
		return zero, utils.ErrInvalidHandle
	}
	if checked && !m.contains(obj) {
		return zero, utils.ErrInvalidHandle
	}
	return utils.AssertType[T](obj.Self())
}

// UpdateNotify wakes every handle currently subscribed to obj's updates. Called by
// Base.UpdateNotify after a driver publishes new data.
func (m *Manager) UpdateNotify(obj *Base) {
	for _, h := range obj.observerSnapshot() {
		h.mu.Lock()
		h.updated = true
		waiter := h.waiter
		h.mu.Unlock()
		if waiter != nil {
			waiter.Signal()
		}
	}
}

func (m *Manager) collectUpdated(inSet []*Handle) []*Handle {
	var out []*Handle
	for _, h := range inSet {
		h.mu.Lock()
		if h.updated {
			out = append(out, h)
		}
		h.mu.Unlock()
	}
	return out
}

// WaitForUpdate subscribes to updates on every handle in inSet, waits up to timeout (or
// indefinitely if timeout <= 0) or until ctx is done, and returns the subset of inSet whose DevObj
// posted an update since subscription. All handles are unsubscribed before return on every path,
// including the error paths, via defer.
func (m *Manager) WaitForUpdate(ctx context.Context, inSet []*Handle, timeout time.Duration) ([]*Handle, error) {
	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	waiter := syncutil.New()
	for _, h := range inSet {
		h.mu.Lock()
		h.updated = false
		h.waiter = waiter
		h.mu.Unlock()
	}
	defer func() {
		for _, h := range inSet {
			h.mu.Lock()
			h.waiter = nil
			h.mu.Unlock()
		}
	}()

	for {
		if out := m.collectUpdated(inSet); len(out) > 0 {
			return out, nil
		}
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, utils.ErrTimeout
		default:
		}
		waiter.Wait(waitCtx, 0)
	}
}
