package cache

import "errors"

// Sentinel errors for cache operations.
// Facade operations never return these for infrastructure failures; they
// surface from marshalers, cleanup and configuration only.
var (
	// ErrMarshal is returned when value serialization fails.
	ErrMarshal = errors.New("cache: failed to marshal value")

	// ErrUnmarshal is returned when value deserialization fails.
	ErrUnmarshal = errors.New("cache: failed to unmarshal value")

	// ErrSharedDisabled is logged when a configured shared tier cannot be used.
	ErrSharedDisabled = errors.New("cache: shared store disabled")

	// ErrInvalidConfig is logged when the configuration cannot be used as given.
	ErrInvalidConfig = errors.New("cache: invalid configuration")

	// ErrCloseTimeout is returned when a graceful close gives up waiting for in-flight calls.
	ErrCloseTimeout = errors.New("cache: timed out waiting for in-flight operations")
)
