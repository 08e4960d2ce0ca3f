//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads GPIO from actual hardware using Linux GPIO character device.
type RealReader struct {
	chip   *gpiocdev.Chip
	screen *gpiocdev.Line
	lock   *gpiocdev.Line
}

func lineOptions(activeLow bool) []gpiocdev.LineReqOption {
	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput}
	if activeLow {
		// Idle high through the pull-up; the switch pulls the line to ground.
		return append(opts, gpiocdev.AsActiveLow, gpiocdev.WithPullUp)
	}
	return append(opts, gpiocdev.WithPullDown)
}

// NewRealReader requests both sense lines on cfg.Chip.
func NewRealReader(cfg Config) (*RealReader, error) {
	chipName := cfg.Chip
	if chipName == "" {
		chipName = DefaultChip
	}
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	screen, err := chip.RequestLine(cfg.ScreenPin, lineOptions(cfg.ScreenActiveLow)...)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request screen pin %d: %w", cfg.ScreenPin, err)
	}

	lock, err := chip.RequestLine(cfg.LockPin, lineOptions(cfg.LockActiveLow)...)
	if err != nil {
		screen.Close()
		chip.Close()
		return nil, fmt.Errorf("request lock pin %d: %w", cfg.LockPin, err)
	}

	return &RealReader{chip: chip, screen: screen, lock: lock}, nil
}

// Read returns the logical line states. Active-low lines are inverted by
// the kernel, so a value of 1 always means asserted.
func (r *RealReader) Read() (bool, bool, error) {
	screen, err := r.screen.Value()
	if err != nil {
		return false, false, fmt.Errorf("read screen pin: %w", err)
	}
	lock, err := r.lock.Value()
	if err != nil {
		return false, false, fmt.Errorf("read lock pin: %w", err)
	}
	return screen == 1, lock == 1, nil
}

// Close returns the lines to input with pull-down (the Pi boot default) and
// releases them.
func (r *RealReader) Close() error {
	var errs []error

	for name, l := range map[string]*gpiocdev.Line{"screen": r.screen, "lock": r.lock} {
		if l == nil {
			continue
		}
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", name, err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", name, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	return errors.Join(errs...)
}
