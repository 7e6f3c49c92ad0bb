package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// IsMiss reports whether err is the driver's "key does not exist" reply.
func IsMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}

// IsTransportError reports whether err means the server could not be reached
// or did not answer in time, as opposed to a miss or a reply error such as
// WRONGTYPE. Cancellation of the caller's own context is not a transport error.
func IsTransportError(err error) bool {
	if err == nil || IsMiss(err) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var replyErr redis.Error
	if errors.As(err, &replyErr) {
		return false
	}

	return true
}
