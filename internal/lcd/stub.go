//go:build !linux

package lcd

import "errors"

// DefaultAddress is the usual PCF8574 backpack address.
const DefaultAddress = 0x27

var errUnsupported = errors.New("lcd: not supported on this platform (requires Linux I2C)")

// RealDisplay is not available on this platform.
type RealDisplay struct{}

// NewRealDisplay returns an error on this platform.
func NewRealDisplay(bus string, addr int) (*RealDisplay, error) {
	return nil, errUnsupported
}

// Clear is not implemented on this platform.
func (d *RealDisplay) Clear() error { return errUnsupported }

// WriteLine is not implemented on this platform.
func (d *RealDisplay) WriteLine(text string, line int) error { return errUnsupported }

// Close is a no-op on this platform.
func (d *RealDisplay) Close() error { return nil }
