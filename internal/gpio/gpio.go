// Package gpio samples the two digital inputs wired to the sensor board: the
// display power sense and the configuration lock switch. On Linux the lines
// are requested through go-gpiocdev; FakeReader scripts them for tests.
package gpio

// Reader reads the logical states of the two sense lines.
type Reader interface {
	// Read returns (screenOn, locked, error). Polarity has already been
	// applied: true always means "screen on" / "lock engaged".
	Read() (bool, bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Default pin assignments (BCM numbering).
const (
	PinScreen = 26 // display power sense
	PinLock   = 16 // configuration lock switch
)

// DefaultChip is the GPIO character device used on a Raspberry Pi.
const DefaultChip = "gpiochip0"

// Config selects the chip, pins and polarity of the sense lines.
type Config struct {
	Chip      string
	ScreenPin int
	LockPin   int
	// ScreenActiveLow inverts the display sense line (raw 0 = screen on).
	ScreenActiveLow bool
	// LockActiveLow inverts the lock line. Lock switches usually close to
	// ground, so this defaults to true.
	LockActiveLow bool
}

// DefaultConfig returns the pin layout of the reference board.
func DefaultConfig() Config {
	return Config{
		Chip:          DefaultChip,
		ScreenPin:     PinScreen,
		LockPin:       PinLock,
		LockActiveLow: true,
	}
}
