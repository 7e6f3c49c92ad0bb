package cache

import (
	"log/slog"
	"time"
)

// SharedOption configures the shared store.
type SharedOption func(*sharedOptions)

type sharedOptions struct {
	logger        *slog.Logger
	probeInterval time.Duration
	probeTimeout  time.Duration
	scanCount     int64
	ownsClient    bool
}

func defaultSharedOptions() *sharedOptions {
	return &sharedOptions{
		probeInterval: 5 * time.Second,
		probeTimeout:  time.Second,
		scanCount:     100,
	}
}

// WithSharedLogger sets the logger for transport warnings and state changes.
func WithSharedLogger(l *slog.Logger) SharedOption {
	return func(o *sharedOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithProbeInterval sets how often a degraded store pings the server.
// Zero disables the background probe; Probe can still be called directly.
// Default: 5 seconds.
func WithProbeInterval(d time.Duration) SharedOption {
	return func(o *sharedOptions) {
		o.probeInterval = d
	}
}

// WithProbeTimeout bounds each background ping.
// Default: 1 second.
func WithProbeTimeout(d time.Duration) SharedOption {
	return func(o *sharedOptions) {
		if d > 0 {
			o.probeTimeout = d
		}
	}
}

// WithScanCount sets the SCAN batch size used by Clear.
// Default: 100.
func WithScanCount(n int64) SharedOption {
	return func(o *sharedOptions) {
		if n > 0 {
			o.scanCount = n
		}
	}
}

// WithOwnedClient makes Close and ForceClose close the Redis client.
// Leave it off when the client is shared with other components.
func WithOwnedClient() SharedOption {
	return func(o *sharedOptions) {
		o.ownsClient = true
	}
}
