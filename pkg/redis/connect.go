package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Option configures a Redis connection.
type Option func(*options)

type options struct {
	poolSize      int
	minIdleConns  int
	maxIdleTime   time.Duration
	maxActiveTime time.Duration
	retryAttempts int
	retryInterval time.Duration
	readTimeout   time.Duration
	writeTimeout  time.Duration
	dialTimeout   time.Duration
}

func defaultOptions() *options {
	return &options{
		poolSize:      10,
		minIdleConns:  2,
		maxIdleTime:   10 * time.Minute,
		maxActiveTime: 30 * time.Minute,
		retryAttempts: 3,
		retryInterval: time.Second,
		readTimeout:   500 * time.Millisecond,
		writeTimeout:  500 * time.Millisecond,
		dialTimeout:   2 * time.Second,
	}
}

// WithPoolSize sets the maximum number of connections in the pool.
// Default: 10
func WithPoolSize(n int) Option {
	return func(o *options) {
		o.poolSize = n
	}
}

// WithMinIdleConns sets the minimum number of idle connections kept open.
// Default: 2
func WithMinIdleConns(n int) Option {
	return func(o *options) {
		o.minIdleConns = n
	}
}

// WithMaxIdleTime sets the maximum time a connection can be idle before being closed.
// Default: 10 minutes
func WithMaxIdleTime(d time.Duration) Option {
	return func(o *options) {
		o.maxIdleTime = d
	}
}

// WithMaxActiveTime sets the maximum lifetime of a connection.
// Default: 30 minutes
func WithMaxActiveTime(d time.Duration) Option {
	return func(o *options) {
		o.maxActiveTime = d
	}
}

// WithRetry configures startup retry behavior used by Open.
// Default: 3 attempts, 1 second base interval with linear backoff.
func WithRetry(attempts int, interval time.Duration) Option {
	return func(o *options) {
		o.retryAttempts = attempts
		o.retryInterval = interval
	}
}

// WithReadTimeout sets the timeout for read operations.
// Cache reads sit on the request path, so the default is short.
// Default: 500 milliseconds
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) {
		o.readTimeout = d
	}
}

// WithWriteTimeout sets the timeout for write operations.
// Default: 500 milliseconds
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) {
		o.writeTimeout = d
	}
}

// WithDialTimeout sets the timeout for establishing new connections.
// Default: 2 seconds
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) {
		o.dialTimeout = d
	}
}

// New builds a Redis client from a redis:// or rediss:// URL without
// contacting the server. The driver dials lazily and reconnects on its own,
// so the returned client becomes usable whenever the server is reachable.
//
// Only configuration problems are reported: an empty URL, an unsupported
// scheme or a malformed address.
func New(url string, opts ...Option) (redis.UniversalClient, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	redisOpts, err := parseURL(url, o)
	if err != nil {
		return nil, err
	}

	return redis.NewClient(redisOpts), nil
}

// Open creates a Redis client and verifies connectivity with retries.
// Supports both redis:// and rediss:// (TLS) URL schemes.
//
// Example:
//
//	client, err := redis.Open(ctx, "redis://localhost:6379/0",
//	    redis.WithPoolSize(20),
//	    redis.WithRetry(5, 3*time.Second),
//	)
func Open(ctx context.Context, url string, opts ...Option) (redis.UniversalClient, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	redisOpts, err := parseURL(url, o)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(redisOpts)
	if err := connect(ctx, client, o.retryAttempts, o.retryInterval); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

func parseURL(url string, o *options) (*redis.Options, error) {
	if url == "" {
		return nil, ErrEmptyConnectionURL
	}

	if !strings.HasPrefix(url, "redis://") && !strings.HasPrefix(url, "rediss://") {
		return nil, ErrFailedToParseURL
	}

	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseURL, err)
	}

	redisOpts.PoolSize = o.poolSize
	redisOpts.MinIdleConns = o.minIdleConns
	redisOpts.ConnMaxIdleTime = o.maxIdleTime
	redisOpts.ConnMaxLifetime = o.maxActiveTime
	redisOpts.ReadTimeout = o.readTimeout
	redisOpts.WriteTimeout = o.writeTimeout
	redisOpts.DialTimeout = o.dialTimeout

	return redisOpts, nil
}

// connect pings the client until it answers, backing off linearly between attempts.
func connect(ctx context.Context, client redis.UniversalClient, attempts int, interval time.Duration) error {
	attempts = max(attempts, 1)

	var lastErr error
	for i := range attempts {
		if lastErr = client.Ping(ctx).Err(); lastErr == nil {
			return nil
		}

		if i == attempts-1 {
			break
		}

		if waitErr := wait(ctx, time.Duration(i+1)*interval); waitErr != nil {
			return errors.Join(ErrConnectionFailed, waitErr)
		}
	}

	return errors.Join(ErrConnectionFailed, lastErr)
}

func wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
