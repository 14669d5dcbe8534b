package scs

import (
	"io"
	"time"
)

// Transport is the byte pipe under the bus. The real implementation is a
// serial port; tests substitute a mock.
type Transport interface {
	io.ReadWriteCloser

	// SetReadTimeout bounds how long a single Read may block.
	SetReadTimeout(timeout time.Duration) error

	// Drain discards any stale buffered input. Half-duplex wiring means a
	// late reply to a previous request can still be sitting in the buffer.
	Drain() error
}
