package scs

import (
	"errors"
	"fmt"
)

// Sentinel errors for the common failure modes.
var (
	ErrTimeout       = errors.New("communication timeout")
	ErrNoResponse    = errors.New("no response from servo")
	ErrInvalidPacket = errors.New("invalid packet")
	ErrShortPacket   = errors.New("incomplete packet")
	ErrChecksum      = errors.New("checksum mismatch")
	ErrBusClosed     = errors.New("bus is closed")
	ErrInvalidID     = errors.New("invalid servo ID")
)

// CommError is a link-level failure: the port itself misbehaved, before any
// servo had a chance to answer.
type CommError struct {
	Op  string
	Err error
}

func (e *CommError) Error() string {
	return fmt.Sprintf("communication error during %s: %v", e.Op, e.Err)
}

func (e *CommError) Unwrap() error {
	return e.Err
}

// ServoError is a failure attributed to one servo: no answer, a garbled
// answer, or alarm flags set in its status byte.
type ServoError struct {
	ID     int
	Op     string
	Status Status
	Err    error
}

func (e *ServoError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("servo %d %s failed: %s", e.ID, e.Op, e.Status.Error())
	}
	if e.Err != nil {
		return fmt.Sprintf("servo %d %s failed: %v", e.ID, e.Op, e.Err)
	}
	return fmt.Sprintf("servo %d %s failed", e.ID, e.Op)
}

func (e *ServoError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a timeout, which for a servo bus usually
// means wrong baud rate, wrong ID, or no power rather than a broken port.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrNoResponse)
}

// AsServoError extracts a ServoError from an error chain, if present.
func AsServoError(err error) (*ServoError, bool) {
	var se *ServoError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
