package lcd

import (
	"fmt"
	"strings"
	"sync"
)

// FakeDisplay records every screen written to it. A screen is the set of
// lines written after a Clear.
type FakeDisplay struct {
	mu      sync.Mutex
	screens [][]string
	current []string

	// ClearError and WriteError are returned by the matching methods when set.
	ClearError error
	WriteError error
	closed     bool
}

// NewFakeDisplay returns an empty FakeDisplay.
func NewFakeDisplay() *FakeDisplay {
	return &FakeDisplay{}
}

// Clear starts a new screen.
func (f *FakeDisplay) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ClearError != nil {
		return f.ClearError
	}
	f.current = make([]string, Rows)
	f.screens = append(f.screens, f.current)
	return nil
}

// WriteLine records text on the current screen.
func (f *FakeDisplay) WriteLine(text string, line int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.WriteError != nil {
		return f.WriteError
	}
	if line < 1 || line > Rows {
		return fmt.Errorf("line %d out of range", line)
	}
	if f.current == nil {
		f.current = make([]string, Rows)
		f.screens = append(f.screens, f.current)
	}
	f.current[line-1] = text
	return nil
}

// Close marks the display closed.
func (f *FakeDisplay) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Screens returns the recorded screens, each joined with "|" and trimmed
// of empty trailing lines.
func (f *FakeDisplay) Screens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.screens))
	for _, s := range f.screens {
		out = append(out, strings.TrimRight(strings.Join(s, "|"), "|"))
	}
	return out
}

// Last returns the most recent screen, or "" if nothing was shown.
func (f *FakeDisplay) Last() string {
	screens := f.Screens()
	if len(screens) == 0 {
		return ""
	}
	return screens[len(screens)-1]
}

// Closed reports whether Close was called.
func (f *FakeDisplay) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
