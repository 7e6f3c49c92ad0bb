package cache

import (
	"context"
	"time"
)

// Store is the byte-level shared tier as seen by the facade: one namespace
// of a shared store. Operations report failure as a miss or false and
// never return transport errors. *Partition implements it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) bool
	Delete(ctx context.Context, key string) bool
	Exists(ctx context.Context, key string) bool
	Clear(ctx context.Context) bool

	// Ready reports whether calls currently reach the backing server.
	Ready() bool
	// State describes the connection: StateReady, StateDegraded, StateDisabled or StateClosed.
	State() string

	// Close waits for in-flight calls, bounded by ctx, then releases the connection.
	Close(ctx context.Context) error
	// ForceClose releases the connection without waiting.
	ForceClose() error
}
