//go:build !linux

package hrtqueue

import "errors"

// setRealtimeFIFO is a no-op stand-in on non-Linux platforms: SCHED_FIFO is a Linux-only
// scheduling policy, and the caller treats this as a best-effort request, not a hard guarantee.
func setRealtimeFIFO() error {
	return errors.New("SCHED_FIFO is only supported on linux; continuing on default scheduler")
}
