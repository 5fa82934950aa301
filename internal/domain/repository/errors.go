package repository

import "errors"

var (
	// ErrNotFound is returned when a lookup matches nothing
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert collides with an existing unique id
	ErrDuplicate = errors.New("duplicate unique id")
)
