package clock

// Fake is a manually driven clock for tests.
// Not safe for concurrent use.
type Fake struct {
	// Boot is returned by ElapsedSinceBootMillis.
	Boot int64

	// Wall is returned by WallClockMillis.
	Wall int64
}

// NewFake creates a Fake with both clocks at zero.
func NewFake() *Fake {
	return &Fake{}
}

// ElapsedSinceBootMillis returns f.Boot.
func (f *Fake) ElapsedSinceBootMillis() int64 {
	return f.Boot
}

// WallClockMillis returns f.Wall.
func (f *Fake) WallClockMillis() int64 {
	return f.Wall
}

// Advance moves both clocks forward by ms.
func (f *Fake) Advance(ms int64) {
	f.Boot += ms
	f.Wall += ms
}
