package cache

import (
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/emrvault/tiercache/pkg/redis"
)

const defaultMaxParallel = 16

// Option configures a Tiered facade.
type Option func(*options)

type options struct {
	logger         *slog.Logger
	registrar      Registrar
	sharedClient   goredis.UniversalClient
	freq           FrequencyEstimator
	name           string
	redisOpts      []redis.Option
	maxParallel    int
	clearOnCleanup bool
}

func defaultOptions() *options {
	return &options{
		maxParallel:    defaultMaxParallel,
		clearOnCleanup: true,
	}
}

// WithLogger sets the logger for degraded-tier warnings and lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithCoordinator registers the facade's cleanup with a lifecycle coordinator.
func WithCoordinator(r Registrar) Option {
	return func(o *options) {
		o.registrar = r
	}
}

// WithSharedClient makes New use an existing Redis client instead of dialing
// Config.SharedURL. The facade does not close a client it did not open.
func WithSharedClient(c goredis.UniversalClient) Option {
	return func(o *options) {
		o.sharedClient = c
	}
}

// WithRedisOptions passes connection options to the client New dials.
func WithRedisOptions(opts ...redis.Option) Option {
	return func(o *options) {
		o.redisOpts = append(o.redisOpts, opts...)
	}
}

// WithFrequencyEstimator replaces the default one-minute WindowCounter.
func WithFrequencyEstimator(f FrequencyEstimator) Option {
	return func(o *options) {
		if f != nil {
			o.freq = f
		}
	}
}

// WithName sets the facade's display name used in logs, metrics and the
// admin API. Default: the namespace.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithMaxParallel caps concurrent per-key calls in MGet, MSet and Warmup.
// Default: 16.
func WithMaxParallel(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxParallel = n
		}
	}
}

// WithSharedClearOnCleanup controls whether Cleanup clears the facade's
// shared namespace. Default: true. Turn it off for namespaces that other
// processes keep reading after this one exits.
func WithSharedClearOnCleanup(clear bool) Option {
	return func(o *options) {
		o.clearOnCleanup = clear
	}
}
