//go:build !linux || !cgo

package nfc

import (
	"context"
	"errors"
	"time"
)

var errUnsupported = errors.New("nfc: not supported on this platform (requires Linux with cgo and libnfc)")

// RealReader is not available on this platform.
type RealReader struct{}

// NewRealReader returns an error on this platform.
func NewRealReader(connection string) (*RealReader, error) {
	return nil, errUnsupported
}

// ReadPassiveTarget is not implemented on this platform.
func (r *RealReader) ReadPassiveTarget(ctx context.Context, timeout time.Duration) ([]byte, error) {
	return nil, errUnsupported
}

// String identifies the stub.
func (r *RealReader) String() string { return "unsupported" }

// Close is a no-op on this platform.
func (r *RealReader) Close() error { return nil }
