//go:build linux

package lcd

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultAddress is the usual PCF8574 backpack address.
const DefaultAddress = 0x27

const i2cSlave = 0x0703

// PCF8574 pin assignment on the common backpack.
const (
	bitRS        = 0x01
	bitEnable    = 0x04
	bitBacklight = 0x08
)

var lineAddress = [Rows]byte{0x80, 0xC0}

// RealDisplay is an HD44780 driven in 4-bit mode through a PCF8574 I2C
// expander.
type RealDisplay struct {
	mu sync.Mutex
	fd int
}

// NewRealDisplay opens bus (e.g. /dev/i2c-1), selects addr and
// initializes the controller.
func NewRealDisplay(bus string, addr int) (*RealDisplay, error) {
	fd, err := unix.Open(bus, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", bus, err)
	}

	if err := unix.IoctlSetInt(fd, i2cSlave, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("select i2c address %#x: %w", addr, err)
	}

	d := &RealDisplay{fd: fd}
	for _, cmd := range []byte{0x03, 0x03, 0x03, 0x02, 0x28, 0x0C, 0x01, 0x06} {
		if err := d.command(cmd); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("initialize display: %w", err)
		}
	}
	time.Sleep(200 * time.Millisecond)

	return d, nil
}

// Clear blanks the display.
func (d *RealDisplay) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.command(0x01); err != nil {
		return err
	}
	time.Sleep(2 * time.Millisecond)
	return d.command(0x02)
}

// WriteLine writes text, padded to the display width, on line 1 or 2.
func (d *RealDisplay) WriteLine(text string, line int) error {
	if line < 1 || line > Rows {
		return fmt.Errorf("line %d out of range", line)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.command(lineAddress[line-1]); err != nil {
		return err
	}
	for _, c := range encode(text) {
		if err := d.send(c, bitRS); err != nil {
			return err
		}
	}
	return nil
}

// Close turns the backlight off and releases the bus.
func (d *RealDisplay) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.write(0)
	return unix.Close(d.fd)
}

func (d *RealDisplay) command(cmd byte) error {
	return d.send(cmd, 0)
}

func (d *RealDisplay) send(value, mode byte) error {
	if err := d.nibble(mode | (value & 0xF0)); err != nil {
		return err
	}
	return d.nibble(mode | ((value << 4) & 0xF0))
}

func (d *RealDisplay) nibble(b byte) error {
	if err := d.write(b | bitBacklight); err != nil {
		return err
	}
	if err := d.write(b | bitEnable | bitBacklight); err != nil {
		return err
	}
	time.Sleep(500 * time.Microsecond)
	if err := d.write(b | bitBacklight); err != nil {
		return err
	}
	time.Sleep(100 * time.Microsecond)
	return nil
}

func (d *RealDisplay) write(b byte) error {
	if _, err := unix.Write(d.fd, []byte{b}); err != nil {
		return fmt.Errorf("i2c write: %w", err)
	}
	return nil
}
