package lifecycle

import (
	"log/slog"
	"os"
	"syscall"
	"time"
)

// Shutdown priorities. Lower runs earlier.
const (
	// PriorityHTTP stops accepting requests before anything they use goes away.
	PriorityHTTP = 10
	// PriorityCache tears down caches while their connections are still open.
	PriorityCache = 50
	// PriorityConnections closes shared clients last.
	PriorityConnections = 90
)

const defaultTimeout = 30 * time.Second

// Option configures a Coordinator.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	signals []os.Signal
	timeout time.Duration
}

func defaultOptions() *options {
	return &options{
		timeout: defaultTimeout,
		signals: []os.Signal{os.Interrupt, syscall.SIGTERM},
	}
}

// WithTimeout bounds the whole shutdown sequence.
// Default: 30 seconds.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger sets the logger for shutdown progress and failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSignals replaces the signals Wait listens for.
// Default: os.Interrupt and SIGTERM.
func WithSignals(sig ...os.Signal) Option {
	return func(o *options) {
		if len(sig) > 0 {
			o.signals = sig
		}
	}
}
