package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/emrvault/tiercache/pkg/cache"
)

// StatsSource is anything that reports cache statistics; *cache.Tiered does.
type StatsSource interface {
	Stats() cache.Stats
}

// CacheCheck reports a cache facade's shared tier. A degraded shared tier
// is reported as degraded, not unhealthy: the facade keeps serving from
// its local tier. A disabled shared tier is healthy; a closed facade is not.
func CacheCheck(c StatsSource) CheckFunc {
	return func(context.Context) error {
		switch state := c.Stats().SharedState; state {
		case cache.StateReady, cache.StateDisabled:
			return nil
		case cache.StateDegraded:
			return fmt.Errorf("%w: shared cache unreachable, serving local tier only", ErrDegraded)
		default:
			return errors.Join(ErrCheckFailed, fmt.Errorf("shared cache %s", state))
		}
	}
}
