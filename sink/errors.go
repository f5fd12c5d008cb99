package sink

import "errors"

var (
	// ErrNotFound is returned when no run with the given id has been saved.
	ErrNotFound = errors.New("run not found")
)
