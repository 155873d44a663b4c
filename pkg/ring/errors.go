package ring

import "errors"

// Sentinel errors returned by ring operations.
//
// Callers should use [errors.Is] to check error types:
//
//	if errors.Is(err, ring.ErrCapacity) {
//	    // shorten the message
//	}
var (
	// ErrCapacity indicates a message does not fit a slot.
	//
	// Returned when the message is longer than blockSize-1 bytes or
	// contains the terminator byte '\n'. The region is not modified.
	//
	// Recovery: shorten or re-encode the message.
	ErrCapacity = errors.New("ring: capacity")

	// ErrSizeMismatch indicates the region length does not equal
	// (blockSize+2)*blockCount.
	//
	// Usually the writer has not created the region yet, or created it with
	// different parameters.
	ErrSizeMismatch = errors.New("ring: size mismatch")

	// ErrInvalidInput indicates invalid layout parameters.
	//
	// This is a programming error.
	ErrInvalidInput = errors.New("ring: invalid input")
)
