// Package clock provides the boot-relative and wall clocks used by the
// estimator and the notifier, with a fake for tests.
package clock

import "time"

// Clock reports elapsed-since-boot and wall-clock time in milliseconds.
type Clock interface {
	// ElapsedSinceBootMillis is monotonic and keeps counting across suspend.
	ElapsedSinceBootMillis() int64

	// WallClockMillis is Unix time in milliseconds.
	WallClockMillis() int64
}

// Real reads the system clocks.
type Real struct{}

// WallClockMillis returns the current Unix time in milliseconds.
func (Real) WallClockMillis() int64 {
	return time.Now().UnixMilli()
}

// ElapsedSinceBootMillis returns milliseconds since boot.
func (Real) ElapsedSinceBootMillis() int64 {
	return bootMillis()
}
