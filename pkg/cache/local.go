package cache

import (
	"log/slog"
	"time"
)

// Local is the in-process tier. Operations never touch the network and
// never fail; an expired entry is reported absent on the next access
// whether or not a background sweep has removed it yet.
//
// TTL semantics for Set: a positive duration expires the entry after that
// duration, zero or negative keeps it until deleted or evicted.
type Local[V any] interface {
	// Get returns the value for key, removing it if it has expired.
	Get(key string) (V, bool)

	// Set inserts or overwrites key. cost is the approximate size in bytes.
	// It reports false when the write was not applied: the store is closed
	// or the backend dropped the write.
	Set(key string, value V, ttl time.Duration, cost int64) bool

	// Delete removes key and returns the number of removed entries (0 or 1).
	Delete(key string) int

	// Has reports whether key is present without returning the value.
	Has(key string) bool

	// Keys returns the non-expired keys, purging expired ones it encounters.
	Keys() []string

	// Flush removes every entry.
	Flush()

	// Len returns the number of entries, including expired ones not yet purged.
	Len() int

	// Size returns the summed cost of all entries.
	Size() int64

	// Close stops background work. It is idempotent.
	Close() error
}

// NewLocal builds the local tier selected by cfg.LocalBackend.
// If the native backend cannot be created, the failure is logged and the
// minimal in-memory store is returned instead; both honour the same contract.
func NewLocal[V any](cfg Config, logger *slog.Logger) Local[V] {
	memory := func() Local[V] {
		return NewMemory[V](
			WithCleanupInterval(cfg.CheckPeriod),
			WithMaxEntries(cfg.MaxLocalKeys),
		)
	}

	switch cfg.LocalBackend {
	case BackendMemory:
		return memory()
	case BackendRistretto, "":
		r, err := NewRistretto[V](cfg.MaxLocalKeys)
		if err != nil {
			if logger != nil {
				logger.Warn("native local cache unavailable, using in-memory store",
					slog.String("backend", BackendRistretto),
					slog.String("error", err.Error()),
				)
			}
			return memory()
		}
		return r
	default:
		if logger != nil {
			logger.Warn("unknown local cache backend, using in-memory store",
				slog.String("backend", cfg.LocalBackend),
			)
		}
		return memory()
	}
}

// expiry converts a local TTL into an absolute deadline; zero means never.
func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

func expired(expiresAt, now time.Time) bool {
	return !expiresAt.IsZero() && now.After(expiresAt)
}
