package nfc

import (
	"context"
	"sync"
	"time"
)

// Poll is one scripted ReadPassiveTarget result.
type Poll struct {
	UID []byte // nil = no card in the field
	Err error
}

// FakeReader is a test double that returns scripted polls.
// Each call to ReadPassiveTarget consumes the next poll. Once the script is
// exhausted it reports no card, waiting out the timeout like the hardware.
type FakeReader struct {
	mu     sync.Mutex
	polls  []Poll
	index  int
	calls  int
	closed bool
}

// NewFakeReader creates a FakeReader with the given polls.
func NewFakeReader(polls ...Poll) *FakeReader {
	return &FakeReader{polls: polls}
}

// Card is shorthand for a poll that detects uid.
func Card(uid ...byte) Poll {
	return Poll{UID: uid}
}

// ReadPassiveTarget returns the next scripted poll.
func (f *FakeReader) ReadPassiveTarget(ctx context.Context, timeout time.Duration) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	if f.index < len(f.polls) {
		p := f.polls[f.index]
		f.index++
		f.mu.Unlock()
		return p.UID, p.Err
	}
	f.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, nil
	}
}

// Exhausted reports whether every scripted poll has been consumed.
func (f *FakeReader) Exhausted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.index >= len(f.polls)
}

// Calls returns how many times ReadPassiveTarget was called.
func (f *FakeReader) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (f *FakeReader) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
