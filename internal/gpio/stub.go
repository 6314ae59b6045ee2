//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealBuzzer is not available on non-Linux platforms.
type RealBuzzer struct{}

// NewRealBuzzer returns an error on non-Linux platforms.
func NewRealBuzzer(chipName string, pin int) (*RealBuzzer, error) {
	return nil, errUnsupported
}

// Set is not implemented on non-Linux platforms.
func (b *RealBuzzer) Set(on bool) error { return errUnsupported }

// Close is not implemented on non-Linux platforms.
func (b *RealBuzzer) Close() error { return nil }

// RealServo is not available on non-Linux platforms.
type RealServo struct{}

// NewRealServo returns an error on non-Linux platforms.
func NewRealServo(chipName string, pin int) (*RealServo, error) {
	return nil, errUnsupported
}

// SetPosition is a no-op on non-Linux platforms.
func (s *RealServo) SetPosition(position float64) {}

// Open is not implemented on non-Linux platforms.
func (s *RealServo) Open() error { return errUnsupported }

// Close is not implemented on non-Linux platforms.
func (s *RealServo) Close() error { return errUnsupported }

// Release is a no-op on non-Linux platforms.
func (s *RealServo) Release() error { return nil }
