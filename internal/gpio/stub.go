//go:build !linux

package gpio

import "errors"

// ErrUnsupported is returned when no GPIO character device exists.
var ErrUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealReader is not available on non-Linux platforms.
type RealReader struct{}

// NewRealReader returns ErrUnsupported on non-Linux platforms.
func NewRealReader(Config) (*RealReader, error) {
	return nil, ErrUnsupported
}

// Read is not implemented on non-Linux platforms.
func (r *RealReader) Read() (bool, bool, error) {
	return false, false, ErrUnsupported
}

// Close is a no-op on non-Linux platforms.
func (r *RealReader) Close() error {
	return nil
}
