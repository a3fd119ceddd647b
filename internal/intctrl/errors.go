package intctrl

import "errors"

var (
	// ErrNotInitialized indicates the firmware table or a required register
	// mapping has not been set up yet.
	ErrNotInitialized = errors.New("interrupt controller not initialized")

	// ErrInsufficientResources indicates a mapping or context allocation
	// failed.
	ErrInsufficientResources = errors.New("insufficient resources")

	// ErrInvalidParameter indicates a malformed line state, an unsupported
	// output line, or an addressing mode the operation cannot express.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNotSupported indicates a configuration the hardware can never
	// carry out, such as a destination the unit refuses to latch or an
	// out-of-range startup jump address.
	ErrNotSupported = errors.New("not supported")

	// ErrNotImplemented indicates a fixed local line the driver does not
	// handle.
	ErrNotImplemented = errors.New("not implemented")

	// ErrBufferTooSmall indicates the caller's enumeration buffer cannot
	// hold every entry. No partial output is produced.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrVersionMismatch indicates hardware outside the expected version
	// family.
	ErrVersionMismatch = errors.New("hardware version mismatch")

	// ErrNotResponding indicates a register poll exhausted its configured
	// wait budget. With the default unbounded budget it is never returned.
	ErrNotResponding = errors.New("hardware not responding")
)
