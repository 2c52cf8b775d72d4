package store

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict means a conditional write lost to a concurrent writer.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable wraps failures of the underlying store itself.
	ErrUnavailable = errors.New("store unavailable")
)
