//go:build !linux

package clock

import "time"

var processStart = time.Now()

// bootMillis falls back to the process monotonic clock on non-Linux platforms.
func bootMillis() int64 {
	return time.Since(processStart).Milliseconds()
}
