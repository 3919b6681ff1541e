package gpio

import "errors"

// FakeReader returns scripted switch positions.
type FakeReader struct {
	// Samples are returned in order; the last one repeats once exhausted.
	Samples []Sample

	index int

	Closed bool

	// ReadError, if set, is returned by Read.
	ReadError error
}

// Sample is one reading in logical form.
type Sample struct {
	Power   bool
	Service bool
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples []Sample) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
func (f *FakeReader) Read() (bool, bool, error) {
	if f.ReadError != nil {
		return false, false, f.ReadError
	}
	if len(f.Samples) == 0 {
		return false, false, errors.New("no samples configured")
	}

	s := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return s.Power, s.Service, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds to the first sample.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Closed = false
}
