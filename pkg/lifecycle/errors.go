package lifecycle

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRegistration is returned for an empty name or a nil callback.
	ErrInvalidRegistration = errors.New("lifecycle: invalid registration")

	// ErrDuplicateName is returned when a name is already registered.
	ErrDuplicateName = errors.New("lifecycle: name already registered")

	// ErrClosed is returned when registering after shutdown has started.
	ErrClosed = errors.New("lifecycle: coordinator is shut down")

	// ErrShutdownTimeout is reported for callbacks that had not finished when
	// the shutdown deadline passed.
	ErrShutdownTimeout = errors.New("lifecycle: shutdown timed out")

	// ErrCleanupPanic is reported for callbacks that panicked.
	ErrCleanupPanic = errors.New("lifecycle: cleanup panicked")
)

// CleanupError ties a failure to the registration that produced it.
type CleanupError struct {
	Err      error
	Name     string
	Priority int
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("lifecycle: cleanup %q (priority %d): %v", e.Name, e.Priority, e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }
