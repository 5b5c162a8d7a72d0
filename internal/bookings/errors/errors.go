package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	// ErrStatusChanged means the status moved between read and conditional write.
	ErrStatusChanged = errors.New("booking status changed concurrently")

	ErrLockHeld = errors.New("vehicle lock already held")
)
