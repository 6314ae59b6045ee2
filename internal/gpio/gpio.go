// Package gpio drives the door's digital outputs: the piezo buzzer and the
// servo that moves the latch.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "time"

// Buzzer is a single active-high output line.
type Buzzer interface {
	// Set drives the line high (true) or low (false).
	Set(on bool) error

	// Close releases GPIO resources.
	Close() error
}

// Latch moves the door latch between its two end positions.
type Latch interface {
	Open() error
	Close() error
}

// Servo pulse geometry for a standard 50Hz hobby servo.
const (
	ServoFrame    = 20 * time.Millisecond
	ServoMinPulse = time.Millisecond
	ServoMaxPulse = 2 * time.Millisecond
)

// Latch positions on the servo's -1..+1 scale.
const (
	PositionOpen   = -1.0
	PositionClosed = 1.0
)

// Pulse drives b high for d and then low again.
// The line is always returned low, even when raising it failed.
func Pulse(b Buzzer, d time.Duration) error {
	err := b.Set(true)
	if err == nil {
		time.Sleep(d)
	}
	if lowErr := b.Set(false); err == nil {
		err = lowErr
	}
	return err
}

// PulseWidth maps a position in [-1, 1] to the servo pulse width.
// Out-of-range positions are clamped.
func PulseWidth(position float64) time.Duration {
	if position < -1 {
		position = -1
	}
	if position > 1 {
		position = 1
	}
	mid := (ServoMinPulse + ServoMaxPulse) / 2
	half := (ServoMaxPulse - ServoMinPulse) / 2
	return mid + time.Duration(position*float64(half))
}
