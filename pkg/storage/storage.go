package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrLocationInUse is returned when another process holds the database directory lock
	ErrLocationInUse = errors.New("database location already in use")

	// ErrStorageClosed is returned by operations on a closed store
	ErrStorageClosed = errors.New("storage closed")
)

// StartupError reports that the database layer could not start.
// Callers use errors.As to tell it apart from network-layer failures.
type StartupError struct {
	Location string // Database directory
	Err      error  // Underlying cause
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("storage startup failed at %s: %v", e.Location, e.Err)
}

func (e *StartupError) Unwrap() error {
	return e.Err
}

// IsStartupError reports whether err came from the database layer during startup
func IsStartupError(err error) bool {
	var startupErr *StartupError
	return errors.As(err, &startupErr)
}
