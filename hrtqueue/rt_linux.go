//go:build linux

package hrtqueue

import (
	"golang.org/x/sys/unix"
)

// setRealtimeFIFO asks the kernel to schedule the calling OS thread under SCHED_FIFO at the
// platform's maximum allowed priority. It must be called after runtime.LockOSThread so it affects
// the dispatcher's dedicated thread and nothing else. Best-effort: most containers and non-root
// processes lack CAP_SYS_NICE, so a failure here is logged and the dispatcher continues on the
// default scheduling class rather than treated as fatal.
func setRealtimeFIFO() error {
	maxPrio, err := unix.SchedGetPriorityMax(unix.SCHED_FIFO)
	if err != nil {
		return err
	}
	return unix.SchedSetscheduler(0, unix.SCHED_FIFO, &unix.SchedParam{Priority: int32(maxPrio)})
}
