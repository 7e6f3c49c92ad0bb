package redis

import (
	"context"
	"errors"
	"io"

	"github.com/redis/go-redis/v9"
)

// Shutdown returns a cleanup callback that closes the Redis client.
// Register it with a lifecycle.Coordinator after every cache that shares
// the client, so caches finish their own cleanup first.
//
// Example:
//
//	coord.Register("redis", lifecycle.PriorityConnections, redis.Shutdown(client))
func Shutdown(client io.Closer) func(ctx context.Context) error {
	return func(_ context.Context) error {
		if client == nil {
			return nil
		}
		if err := client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			return err
		}
		return nil
	}
}
