// Package redis provides the Redis client plumbing behind the shared cache tier.
//
// This package wraps [github.com/redis/go-redis/v9] to provide connection pooling,
// health checks, transport-error classification and shutdown callbacks with
// defaults tuned for a cache that sits on the request path.
//
// # Features
//
//   - Connection pooling with configurable limits and timeouts
//   - [New] builds a lazily-dialing client so a cache can start while Redis is down
//   - [Open] verifies connectivity with retries for callers that require Redis
//   - [IsTransportError] separates outages from misses and reply errors
//   - Health check closure compatible with health.CheckFunc
//   - Shutdown callback for lifecycle.Coordinator
//
// # Configuration
//
// All settings are configured via functional options:
//
//   - WithPoolSize(n int): Maximum number of connections (default: 10)
//   - WithMinIdleConns(n int): Minimum idle connections (default: 2)
//   - WithMaxIdleTime(d time.Duration): Maximum connection idle time (default: 10m)
//   - WithMaxActiveTime(d time.Duration): Maximum connection lifetime (default: 30m)
//   - WithRetry(attempts int, interval time.Duration): Open retries (default: 3 attempts, 1s)
//   - WithReadTimeout(d time.Duration): Read operation timeout (default: 500ms)
//   - WithWriteTimeout(d time.Duration): Write operation timeout (default: 500ms)
//   - WithDialTimeout(d time.Duration): Connection dial timeout (default: 2s)
//
// # Usage
//
//	client, err := redis.New(os.Getenv("CACHE_SHARED_URL"),
//		redis.WithPoolSize(20),
//	)
//	if err != nil {
//		// malformed URL: run without the shared tier
//	}
//
// # Error Handling
//
// The package defines sentinel errors for common failure modes:
//
//   - [ErrEmptyConnectionURL] - Empty connection URL provided
//   - [ErrFailedToParseURL] - Invalid connection URL format or scheme
//   - [ErrConnectionFailed] - Connection failed after all retry attempts
//   - [ErrHealthcheckFailed] - Redis ping failed
//
// Errors are wrapped using [errors.Join] to preserve the original error context.
package redis
