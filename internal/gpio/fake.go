package gpio

import "errors"

// errEmptyScript is returned by a FakeReader built without samples.
var errEmptyScript = errors.New("no samples configured")

// Sample is one logical reading of both lines.
type Sample struct {
	ScreenOn bool
	Locked   bool
}

// FakeReader replays a fixed script of line states. Once the script runs out
// it keeps returning the final sample, which models lines that have settled.
type FakeReader struct {
	Samples   []Sample
	ReadError error // overrides the script while set
	Reads     int
	Closed    bool

	pos int
}

func NewFakeReader(samples []Sample) *FakeReader {
	return &FakeReader{Samples: samples}
}

func (f *FakeReader) Read() (screenOn, locked bool, err error) {
	f.Reads++
	switch {
	case f.ReadError != nil:
		return false, false, f.ReadError
	case len(f.Samples) == 0:
		return false, false, errEmptyScript
	}
	cur := f.Samples[f.pos]
	if f.pos+1 < len(f.Samples) {
		f.pos++
	}
	return cur.ScreenOn, cur.Locked, nil
}

func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset replays the script from the first sample and clears the counters.
func (f *FakeReader) Reset() {
	f.pos, f.Reads, f.Closed = 0, 0, false
}
