package sensor

import "sync"

// Reading is one scripted Read result.
type Reading struct {
	Sample Sample
	Err    error
}

// FakeSensor returns scripted readings in order and then repeats the last
// one. With no script it reports an empty sample.
type FakeSensor struct {
	mu       sync.Mutex
	readings []Reading
	index    int
	calls    int
}

// NewFakeSensor creates a FakeSensor with the given readings.
func NewFakeSensor(readings ...Reading) *FakeSensor {
	return &FakeSensor{readings: readings}
}

// Read returns the next scripted reading.
func (f *FakeSensor) Read() (Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if len(f.readings) == 0 {
		return Sample{}, nil
	}
	r := f.readings[f.index]
	if f.index < len(f.readings)-1 {
		f.index++
	}
	return r.Sample, r.Err
}

// Calls returns how many times Read was called.
func (f *FakeSensor) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
