// Package nfc reads contactless card identifiers with hardware abstraction.
// The real implementation talks to a PN532 through libnfc.
// The fake implementation allows testing without hardware.
package nfc

import (
	"context"
	"encoding/hex"
	"strings"
	"time"
)

// DefaultPollTimeout bounds a single ReadPassiveTarget call.
const DefaultPollTimeout = 500 * time.Millisecond

// Reader polls for a card in the field.
type Reader interface {
	// ReadPassiveTarget waits up to timeout for a card and returns its raw
	// UID bytes. No card is not an error: it returns (nil, nil).
	ReadPassiveTarget(ctx context.Context, timeout time.Duration) ([]byte, error)

	// Close releases the device.
	Close() error
}

// Canonical returns the canonical identifier for a raw UID: uppercase
// hexadecimal of the bytes.
func Canonical(raw []byte) string {
	return strings.ToUpper(hex.EncodeToString(raw))
}
