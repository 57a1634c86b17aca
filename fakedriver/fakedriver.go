// Package fakedriver provides an in-memory device.Driver test double used by the test suite and
// cmd/demo, standing in for real hardware.
package fakedriver

import (
	"context"
	"sync"

	"github.com/edgeworks-io/hrtcore/device"
	"github.com/edgeworks-io/hrtcore/logging"
	"github.com/edgeworks-io/hrtcore/work"
)

// Model is the registry key this package registers itself under in init().
const Model device.Model = "fake"

func init() {
	device.RegisterDriverModel(Model, New)
}

// Driver is a fake periodic sensor: each Measure increments a counter and publishes it as the
// latest reading, then calls UpdateNotify.
type Driver struct {
	device.Base

	mu      sync.Mutex
	reading int
	fail    bool
}

// New constructs a Driver from cfg and wires it to workMgr/devMgr, satisfying
// device.Constructor so it can be registered under Model.
func New(cfg device.DriverConfig, workMgr *work.Manager, devMgr *device.Manager, logger logging.Logger) (device.Measurer, error) {
	d := &Driver{}
	d.Init(d, cfg.Name, cfg.DevBasePath, cfg.SampleInterval(), cfg.ID(), workMgr, devMgr, logger)
	if v, ok := cfg.Attributes["fail"].(bool); ok {
		d.fail = v
	}
	return d, nil
}

// Measure implements device.Measurer.
func (d *Driver) Measure(ctx context.Context) error {
	d.mu.Lock()
	if d.fail {
		d.mu.Unlock()
		return errFakeMeasure
	}
	d.reading++
	d.mu.Unlock()

	d.UpdateNotify()
	return nil
}

// Reading returns the most recently published value.
func (d *Driver) Reading() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reading
}

// DevRead implements device.Reader, returning the current reading as a single big-endian byte
// (readings never exceed a test run's iteration count in practice).
func (d *Driver) DevRead(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	buf[0] = byte(d.Reading())
	return 1, nil
}

var errFakeMeasure = fakeMeasureError{}

type fakeMeasureError struct{}

func (fakeMeasureError) Error() string { return "fakedriver: simulated measure failure" }
