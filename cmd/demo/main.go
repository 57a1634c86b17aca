// Package main wires a Framework with a handful of fake drivers and runs until interrupted, as a
// minimal runnable example of the wiring a real driver deployment would do.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/edgeworks-io/hrtcore/device"
	_ "github.com/edgeworks-io/hrtcore/fakedriver"
	"github.com/edgeworks-io/hrtcore/framework"
	"github.com/edgeworks-io/hrtcore/logging"
)

var logger = logging.NewDebugLogger("demo")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		logger.Errorw("demo exited with an error", "error", err)
	}
}

func run(ctx context.Context, logger logging.Logger) error {
	f := framework.New(logger)
	if err := f.Initialize(); err != nil {
		return err
	}
	defer f.Shutdown()

	cfgs := []device.DriverConfig{
		{
			Name:             "temp",
			Model:            "fake",
			BusType:          device.BusVirt,
			DevBasePath:      "/dev/temp",
			SampleIntervalUS: uint64(100 * time.Millisecond / time.Microsecond),
		},
		{
			Name:             "pressure",
			Model:            "fake",
			BusType:          device.BusVirt,
			BusIndex:         1,
			DevBasePath:      "/dev/pressure",
			SampleIntervalUS: uint64(250 * time.Millisecond / time.Microsecond),
		},
	}
	if err := f.LoadConfig(ctx, cfgs); err != nil {
		return err
	}

	handle, err := f.Dev.GetHandle("/dev/temp/0")
	if err != nil {
		return err
	}
	defer f.Dev.ReleaseHandle(handle)

	for {
		updated, err := f.Dev.WaitForUpdate(ctx, []*device.Handle{handle}, 2*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warnw("wait for update timed out", "error", err)
			continue
		}
		for range updated {
			var buf [1]byte
			if _, err := handle.Read(buf[:]); err == nil {
				logger.Infow("reading", "value", buf[0])
			}
		}
	}
}
