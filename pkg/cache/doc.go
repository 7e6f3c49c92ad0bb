// Package cache provides a two-tier cache: a process-local store (L1) in
// front of a shared, namespaced Redis store (L2).
//
// # Local tier
//
// [Local] is the in-process store. [NewLocal] picks the implementation from
// [Config.LocalBackend]: [Ristretto], backed by dgraph-io/ristretto, or
// [Memory], a map with a doubly-linked list for LRU ordering. If the native
// backend cannot be built, NewLocal logs and returns a Memory store; both
// behave the same to callers.
//
// TTL semantics for Local.Set:
//   - Positive duration: entry expires after this duration
//   - Zero or negative: entry never expires
//
// Expired entries are reported absent on the next access whether or not the
// janitor has swept them yet.
//
// # Shared tier
//
// [Shared] wraps a go-redis client and stores keys as "{namespace}:{key}".
// It never returns errors: transport failures are logged and become misses.
// The first transport failure degrades the store; while degraded, calls
// short-circuit without touching the network and a background probe pings
// the server until it answers again:
//
//	client, _ := redis.New("redis://localhost:6379/0")
//	shared := cache.NewShared(client, cache.WithSharedLogger(log))
//	fhir := cache.NewNamespace(shared, "fhir_r4", cache.JSON[Bundle]())
//	fhir.Clear(ctx)
//
// # Facade
//
// [Tiered] combines both tiers:
//
//	records := cache.New(ctx, cfg, cache.JSON[Record](),
//	    cache.WithLogger(log),
//	    cache.WithCoordinator(coord),
//	)
//
//	records.Set(ctx, "patient:42", rec, 5*time.Minute)
//	rec, ok := records.Get(ctx, "patient:42")
//
// Reads try L1, then L2, writing L2 hits back into L1. Writes go to both
// tiers; Set reports true if either accepted the write. TTL semantics for
// the facade and the shared tier:
//   - Positive duration: entry expires after this duration
//   - Zero: use Config.DefaultTTL
//   - Negative: entry never expires
//
// [Tiered.SmartSet] scales the TTL by read frequency, as reported by a
// [FrequencyEstimator] ([WindowCounter] by default). [GetOrLoad] adds a
// read-through loader with per-key deduplication of concurrent misses.
//
// # Shutdown
//
// [Tiered.Cleanup] flushes and stops L1, clears the facade's L2 namespace,
// closes the L2 connection and unregisters from the coordinator given via
// [WithCoordinator]. The coordinator calls the same function on process
// shutdown, and only the first call has effect.
package cache
