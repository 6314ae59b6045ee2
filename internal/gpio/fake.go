package gpio

import (
	"sync"
	"time"
)

// FakeBuzzer is a test double that records every level change.
type FakeBuzzer struct {
	mu sync.Mutex

	// Levels contains every value passed to Set, in order.
	Levels []bool

	// SetError, if set, will be returned by Set.
	SetError error

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeBuzzer creates a FakeBuzzer.
func NewFakeBuzzer() *FakeBuzzer {
	return &FakeBuzzer{}
}

// Set records the level.
func (f *FakeBuzzer) Set(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.Levels = append(f.Levels, on)
	return nil
}

// Beeps returns how many times the line was driven high.
func (f *FakeBuzzer) Beeps() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, on := range f.Levels {
		if on {
			n++
		}
	}
	return n
}

// Close marks the buzzer as closed.
func (f *FakeBuzzer) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Command is one latch movement recorded by FakeLatch.
type Command struct {
	Open bool
	At   time.Time
}

// FakeLatch is a test double that records latch movements.
type FakeLatch struct {
	mu       sync.Mutex
	commands []Command

	// OpenError and CloseError, if set, are returned after recording the command.
	OpenError  error
	CloseError error
}

// NewFakeLatch creates a FakeLatch.
func NewFakeLatch() *FakeLatch {
	return &FakeLatch{}
}

// Open records an open command.
func (f *FakeLatch) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, Command{Open: true, At: time.Now()})
	return f.OpenError
}

// Close records a close command.
func (f *FakeLatch) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, Command{Open: false, At: time.Now()})
	return f.CloseError
}

// Commands returns a copy of the recorded commands.
func (f *FakeLatch) Commands() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Command, len(f.commands))
	copy(out, f.commands)
	return out
}

// Reset clears recorded commands and errors.
func (f *FakeLatch) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = nil
	f.OpenError = nil
	f.CloseError = nil
}
