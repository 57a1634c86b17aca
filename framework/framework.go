// Package framework implements init/shutdown orchestration of the dispatcher, device registry,
// and work registry, plus the driver-model bootstrap path.
package framework

import (
	"context"
	"sync"

	"go.uber.org/multierr"

	rdkclock "github.com/edgeworks-io/hrtcore/clock"
	"github.com/edgeworks-io/hrtcore/device"
	"github.com/edgeworks-io/hrtcore/hrtqueue"
	"github.com/edgeworks-io/hrtcore/logging"
	"github.com/edgeworks-io/hrtcore/syncutil"
	"github.com/edgeworks-io/hrtcore/utils"
	"github.com/edgeworks-io/hrtcore/work"
)

// Framework wires together the dispatcher, the work registry, and the device registry into a
// single process-wide context, handing each subsystem its own sublogger.
type Framework struct {
	logger logging.Logger

	once        sync.Once
	initialized bool
	shutdownMu  sync.Mutex
	shutDown    bool
	shutdownObj *syncutil.Obj

	Clock *rdkclock.Clock
	Queue *hrtqueue.Queue
	Work  *work.Manager
	Dev   *device.Manager
}

// New returns a Framework that logs through logger's sublogger tree. Initialize must be called
// before use.
func New(logger logging.Logger) *Framework {
	return &Framework{
		logger:      logger,
		shutdownObj: syncutil.New(),
	}
}

// Initialize brings up the dispatch queue, then the device manager, then the work manager, in
// that order — any stage failure aborts with a wrapped error naming the stage. Single-call: a
// second Initialize returns ErrAlreadyInitialized rather than silently re-running.
func (f *Framework) Initialize() error {
	var initErr error
	ran := false
	f.once.Do(func() {
		ran = true
		f.Clock = rdkclock.New()
		f.Queue = hrtqueue.New(f.Clock, f.logger.Sublogger("dispatcher"))
		if err := f.Queue.Start(); err != nil {
			initErr = errWrapStage("hrtqueue", err)
			return
		}

		f.Dev = device.NewManager(f.logger.Sublogger("devmgr"))

		f.Work = work.NewManager(f.Queue, f.logger.Sublogger("workmgr"))

		f.shutdownMu.Lock()
		f.initialized = true
		f.shutdownMu.Unlock()
	})
	if !ran {
		return utils.ErrAlreadyInitialized
	}
	return initErr
}

func errWrapStage(stage string, err error) error {
	return utils.NewSystemError("initialize "+stage, err)
}

// LoadConfig walks cfgs, constructs each driver through the model registry, registers it with the
// device manager, and starts it.
func (f *Framework) LoadConfig(ctx context.Context, cfgs []device.DriverConfig) error {
	if !f.isInitialized() {
		return utils.ErrNotInitialized
	}

	for _, cfg := range cfgs {
		if err := cfg.Validate(cfg.Name); err != nil {
			return err
		}

		measurer, err := device.NewDriverFromModel(cfg.Model, cfg, f.Work, f.Dev, f.logger.Sublogger(cfg.Name))
		if err != nil {
			return err
		}

		driver, err := utils.AssertType[device.Driver](measurer)
		if err != nil {
			return err
		}

		if _, err := f.Dev.RegisterDriver(driver.DevBase()); err != nil {
			return err
		}
		if err := driver.DevBase().Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (f *Framework) isInitialized() bool {
	f.shutdownMu.Lock()
	defer f.shutdownMu.Unlock()
	return f.initialized && !f.shutDown
}

// WaitForShutdown blocks until Shutdown completes or ctx is done.
func (f *Framework) WaitForShutdown(ctx context.Context) {
	for {
		f.shutdownMu.Lock()
		done := f.shutDown
		f.shutdownMu.Unlock()
		if done {
			return
		}
		f.shutdownObj.Wait(ctx, 0)
		if ctx.Err() != nil {
			return
		}
	}
}

// Shutdown tears down the framework in reverse init order, best-effort: stop the dispatcher, join
// its thread, clear the work registry, clear the device registry, then signal WaitForShutdown
// waiters. Shutdown never fails; residual errors are combined and logged rather than propagated.
func (f *Framework) Shutdown() {
	f.shutdownMu.Lock()
	if f.shutDown {
		f.shutdownMu.Unlock()
		return
	}
	f.shutDown = true
	f.shutdownMu.Unlock()

	if f.Queue != nil {
		f.Queue.Shutdown()
		f.Queue.ClearAll()
	}

	var residual []work.Handle
	if f.Work != nil {
		residual = f.Work.Clear()
	}
	if f.Dev != nil {
		f.Dev.Clear()
	}
	if len(residual) > 0 {
		f.logger.Warnw("shutdown cleared residual work items", "count", len(residual))
	}

	if err := multierr.Combine(f.logger.Sync()); err != nil {
		// Best-effort: a Sync failure (e.g. stdout not a regular file) must not block shutdown.
		f.logger.Debugw("logger sync reported an error during shutdown", "error", err)
	}

	f.shutdownObj.Broadcast()
}
