//go:build linux

package clock

import (
	"time"

	"golang.org/x/sys/unix"
)

var processStart = time.Now()

// bootMillis reads CLOCK_BOOTTIME, which unlike CLOCK_MONOTONIC includes
// time spent in suspend.
func bootMillis() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_BOOTTIME, &ts); err != nil {
		return time.Since(processStart).Milliseconds()
	}
	return ts.Nano() / int64(time.Millisecond)
}
