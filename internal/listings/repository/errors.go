package repository

import "errors"

var (
	// ErrNotFound is returned when a vehicle is not found by ID
	ErrNotFound = errors.New("vehicle not found")

	// ErrInvalidID is returned when an ID is not an ObjectID hex
	ErrInvalidID = errors.New("invalid vehicle ID format")
)
