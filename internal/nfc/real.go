//go:build linux && cgo

package nfc

import (
	"context"
	"fmt"
	"time"

	"github.com/clausecker/nfc/v2"
)

// listInterval is the pause between two passive target listings within
// one ReadPassiveTarget call.
const listInterval = 50 * time.Millisecond

// RealReader reads ISO14443A cards from a libnfc device, e.g.
// "pn532_i2c:/dev/i2c-1".
type RealReader struct {
	device     nfc.Device
	modulation nfc.Modulation
}

// NewRealReader opens the libnfc device and puts it in initiator mode.
func NewRealReader(connection string) (*RealReader, error) {
	dev, err := nfc.Open(connection)
	if err != nil {
		return nil, fmt.Errorf("open nfc device %q: %w", connection, err)
	}

	if err := dev.InitiatorInit(); err != nil {
		dev.Close()
		return nil, fmt.Errorf("initiator init: %w", err)
	}

	return &RealReader{
		device:     dev,
		modulation: nfc.Modulation{Type: nfc.ISO14443a, BaudRate: nfc.Nbr106},
	}, nil
}

// ReadPassiveTarget lists passive targets until one shows up or timeout
// elapses.
func (r *RealReader) ReadPassiveTarget(ctx context.Context, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)

	for {
		targets, err := r.device.InitiatorListPassiveTargets(r.modulation)
		if err != nil {
			return nil, fmt.Errorf("list passive targets: %w", err)
		}

		for _, target := range targets {
			iso, ok := target.(*nfc.ISO14443aTarget)
			if !ok {
				continue
			}
			n := int(iso.UIDLen)
			if n <= 0 || n > len(iso.UID) {
				continue
			}
			uid := make([]byte, n)
			copy(uid, iso.UID[:n])
			return uid, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}

		wait := listInterval
		if remaining < wait {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// String identifies the underlying device.
func (r *RealReader) String() string {
	return r.device.String()
}

// Close releases the libnfc device.
func (r *RealReader) Close() error {
	return r.device.Close()
}
