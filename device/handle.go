package device

import (
	"sync"

	"github.com/edgeworks-io/hrtcore/syncutil"
	"github.com/edgeworks-io/hrtcore/utils"
)

// Handle is an opened reference to a DevObj: non-copyable, single-owner, obtained from
// Manager.GetHandle and released with Manager.ReleaseHandle.
type Handle struct {
	mu     sync.Mutex
	obj    *Base
	lastErr error
	updated bool
	waiter  *syncutil.Obj
}

// Valid reports whether the handle still references a DevObj.
func (h *Handle) Valid() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.obj != nil
}

// LastError returns the most recently recorded error for operations on this handle.
func (h *Handle) LastError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

func (h *Handle) setError(err error) {
	h.mu.Lock()
	h.lastErr = err
	h.mu.Unlock()
}

// Ioctl routes to the referenced DevObj's DevIoctl, or ErrInvalidHandle if the handle is empty.
func (h *Handle) Ioctl(cmd int, arg []byte) ([]byte, error) {
	h.mu.Lock()
	obj := h.obj
	h.mu.Unlock()
	if obj == nil {
		return nil, utils.ErrInvalidHandle
	}
	out, err := obj.DevIoctl(cmd, arg)
	h.setError(err)
	return out, err
}

// Read routes to the referenced DevObj's DevRead, or ErrInvalidHandle if the handle is empty.
func (h *Handle) Read(buf []byte) (int, error) {
	h.mu.Lock()
	obj := h.obj
	h.mu.Unlock()
	if obj == nil {
		return 0, utils.ErrInvalidHandle
	}
	n, err := obj.DevRead(buf)
	h.setError(err)
	return n, err
}

// Write routes to the referenced DevObj's DevWrite, or ErrInvalidHandle if the handle is empty.
func (h *Handle) Write(buf []byte) (int, error) {
	h.mu.Lock()
	obj := h.obj
	h.mu.Unlock()
	if obj == nil {
		return 0, utils.ErrInvalidHandle
	}
	n, err := obj.DevWrite(buf)
	h.setError(err)
	return n, err
}
