package health

import "errors"

// Sentinel errors for the health package.
var (
	// ErrCheckFailed is returned when one or more health checks fail.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout is returned when a health check exceeds its timeout.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrDegraded marks a check that still serves, at reduced capacity.
	// Return it (wrapped or joined) from a CheckFunc to report degraded
	// instead of unhealthy.
	ErrDegraded = errors.New("health: degraded")
)
