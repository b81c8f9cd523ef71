package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrStaleTransition is returned when a status update lost the race against a
	// concurrent writer and the stored status no longer matches the expected one.
	ErrStaleTransition = errors.New("stale transition")
)
