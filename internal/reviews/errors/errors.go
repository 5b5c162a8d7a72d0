package errors

import "errors"

var (
	ErrNotFound = errors.New("review not found")

	ErrBookingNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid ID format")

	// ErrDuplicate is returned when the unique (booking, reviewer, type) index rejects an insert.
	ErrDuplicate = errors.New("review already exists")
)
