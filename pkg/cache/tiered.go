package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/emrvault/tiercache/pkg/logger"
	"github.com/emrvault/tiercache/pkg/redis"
)

// Frequency thresholds for SmartSet.
const (
	hotKeyFrequency  = 10
	coldKeyFrequency = 2
)

// Tiered is the cache facade: a local tier in front of one namespace of a
// shared tier. Reads try local first and write shared hits back into it.
// Writes go to both tiers independently.
//
// No method returns an infrastructure error. A failing tier is logged and
// its part of the call reports a miss or false; the other tier keeps
// serving. Empty or whitespace-only keys are never stored.
type Tiered[V any] struct {
	local     Local[V]
	remote    Store
	marshal   Marshaler[V]
	freq      FrequencyEstimator
	registrar Registrar
	logger    *slog.Logger
	loads     singleflight.Group
	cleanup   sync.Once
	cleanErr  error
	name      string
	regName   string
	cfg       Config
	stats     counters
	opts      *options
}

// New builds a facade from cfg: the local tier selected by cfg.LocalBackend
// and, when cfg.SharedEnabled is set or a client is injected, the shared tier.
//
// New never fails. A malformed shared URL is logged and leaves the facade
// local-only; an unreachable server leaves the shared tier degraded until a
// probe succeeds.
//
// Example:
//
//	records := cache.New(ctx, cfg, cache.JSON[Record](),
//	    cache.WithLogger(log),
//	    cache.WithCoordinator(coord),
//	)
//	records.Set(ctx, cachekey.MedicalRecord(id), rec, 5*time.Minute)
func New[V any](ctx context.Context, cfg Config, m Marshaler[V], opts ...Option) *Tiered[V] {
	o := collect(opts)
	cfg = cfg.withDefaults()

	local := NewLocal[V](cfg, o.logger)
	remote := openShared(ctx, cfg, o)

	return build(cfg, local, remote, m, o)
}

// NewTiered assembles a facade from ready-made tiers. A nil remote means
// local-only. cfg supplies the namespace, default TTL and the remaining
// policy knobs.
func NewTiered[V any](cfg Config, local Local[V], remote Store, m Marshaler[V], opts ...Option) *Tiered[V] {
	o := collect(opts)
	cfg = cfg.withDefaults()

	if local == nil {
		local = NewLocal[V](cfg, o.logger)
	}
	if remote == nil {
		remote = NewShared(nil).Partition(cfg.Namespace)
	}

	return build(cfg, local, remote, m, o)
}

func collect(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logger.NewNope()
	}
	return o
}

func openShared(ctx context.Context, cfg Config, o *options) Store {
	sharedOpts := []SharedOption{
		WithSharedLogger(o.logger),
		WithProbeInterval(cfg.ProbeInterval),
	}

	client := o.sharedClient
	if client == nil {
		if !cfg.SharedEnabled {
			return NewShared(nil).Partition(cfg.Namespace)
		}

		c, err := redis.New(cfg.SharedURL, o.redisOpts...)
		if err != nil {
			o.logger.ErrorContext(ctx, "shared cache disabled",
				slog.String("namespace", cfg.Namespace),
				slog.String("error", errors.Join(ErrSharedDisabled, ErrInvalidConfig, err).Error()),
			)
			return NewShared(nil).Partition(cfg.Namespace)
		}
		client = c
		sharedOpts = append(sharedOpts, WithOwnedClient())
	}

	shared := NewShared(client, sharedOpts...)
	shared.Probe(ctx)

	return shared.Partition(cfg.Namespace)
}

func build[V any](cfg Config, local Local[V], remote Store, m Marshaler[V], o *options) *Tiered[V] {
	if m == nil {
		m = JSON[V]()
	}

	freq := o.freq
	if freq == nil {
		freq = NewWindowCounter(DefaultFrequencyWindow)
	}

	name := o.name
	if name == "" {
		name = cfg.Namespace
	}

	t := &Tiered[V]{
		cfg:       cfg,
		local:     local,
		remote:    remote,
		marshal:   m,
		freq:      freq,
		registrar: o.registrar,
		name:      name,
		opts:      o,
		logger:    o.logger.With(slog.String("cache", name)),
	}

	if t.registrar != nil {
		t.regName = "cache:" + cfg.Namespace + ":" + uuid.NewString()
		if err := t.registrar.Register(t.regName, cfg.ShutdownPriority, t.Cleanup); err != nil {
			t.logger.Error("cache cleanup not registered",
				slog.String("registration", t.regName),
				slog.String("error", err.Error()),
			)
			t.registrar = nil
		}
	}

	return t
}

// Name returns the display name.
func (t *Tiered[V]) Name() string { return t.name }

// Namespace returns the shared-tier namespace.
func (t *Tiered[V]) Namespace() string { return t.cfg.Namespace }

// Get returns the value for key from the local tier, or from the shared tier
// on a local miss. A shared hit is written back into the local tier with the
// default TTL. A hit at either tier counts as one hit.
func (t *Tiered[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V

	if !validKey(key) {
		t.stats.misses.Add(1)
		return zero, false
	}

	t.freq.Record(key)

	if v, ok := t.local.Get(key); ok {
		t.stats.l1Hits.Add(1)
		return t.copyOf(ctx, key, v), true
	}

	if data, ok := t.remote.Get(ctx, key); ok {
		v, err := t.marshal.Unmarshal(data)
		if err == nil {
			t.local.Set(key, v, t.cfg.DefaultTTL, int64(len(data)))
			t.stats.l2Hits.Add(1)
			if t.cfg.CloneOnRead {
				if c, err := t.marshal.Unmarshal(data); err == nil {
					return c, true
				}
			}
			return v, true
		}
		t.logger.WarnContext(ctx, "shared cache value cannot be decoded",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}

	t.stats.misses.Add(1)
	return zero, false
}

// Set writes value to both tiers. A zero ttl uses the default TTL, a
// negative one never expires. It reports true if either tier took the write.
func (t *Tiered[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) bool {
	if !validKey(key) {
		return false
	}

	ttl = t.resolveTTL(ttl)

	data, err := t.marshal.Marshal(value)
	if err != nil {
		t.logger.WarnContext(ctx, "cache value cannot be encoded, keeping it local only",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return t.local.Set(key, value, max(ttl, 0), 0)
	}

	stored := value
	if t.cfg.CloneOnRead {
		if c, err := t.marshal.Unmarshal(data); err == nil {
			stored = c
		}
	}

	localOK := t.local.Set(key, stored, max(ttl, 0), int64(len(data)))

	ready := t.remote.Ready()
	remoteOK := t.remote.Set(ctx, key, data, max(ttl, 0))
	if !remoteOK && ready {
		t.stats.l2Errors.Add(1)
	}

	return localOK || remoteOK
}

// Delete removes key from both tiers and reports whether either removed something.
func (t *Tiered[V]) Delete(ctx context.Context, key string) bool {
	if !validKey(key) {
		return false
	}

	localRemoved := t.local.Delete(key) > 0
	remoteRemoved := t.remote.Delete(ctx, key)

	return localRemoved || remoteRemoved
}

// Exists reports whether key is in the local tier, asking the shared tier otherwise.
func (t *Tiered[V]) Exists(ctx context.Context, key string) bool {
	if !validKey(key) {
		return false
	}

	return t.local.Has(key) || t.remote.Exists(ctx, key)
}

// MGet looks up keys in parallel and returns the hits. Misses are absent
// from the result.
func (t *Tiered[V]) MGet(ctx context.Context, keys []string) map[string]V {
	result := make(map[string]V, len(keys))
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(t.opts.maxParallel)

	for _, key := range keys {
		g.Go(func() error {
			if v, ok := t.Get(ctx, key); ok {
				mu.Lock()
				result[key] = v
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return result
}

// MSet writes entries in parallel. It reports true only if every Set did;
// entries that were written stay written either way.
func (t *Tiered[V]) MSet(ctx context.Context, entries map[string]V, ttl time.Duration) bool {
	var failed atomic.Bool

	g := new(errgroup.Group)
	g.SetLimit(t.opts.maxParallel)

	for key, value := range entries {
		g.Go(func() error {
			if !t.Set(ctx, key, value, ttl) {
				failed.Store(true)
			}
			return nil
		})
	}
	_ = g.Wait()

	return !failed.Load()
}

// Warmup preloads entries with the fixed WarmupTTL.
func (t *Tiered[V]) Warmup(ctx context.Context, entries map[string]V) bool {
	ok := t.MSet(ctx, entries, WarmupTTL)
	t.logger.InfoContext(ctx, "cache warmed up",
		slog.Int("entries", len(entries)),
		slog.Bool("complete", ok),
	)
	return ok
}

// SmartSet is Set with a TTL scaled by how often key has been read:
// doubled for hot keys (more than 10 reads in the window), halved for cold
// ones (fewer than 2), unchanged otherwise.
func (t *Tiered[V]) SmartSet(ctx context.Context, key string, value V, baseTTL time.Duration) bool {
	return t.Set(ctx, key, value, t.AdaptiveTTL(key, baseTTL))
}

// AdaptiveTTL returns the TTL SmartSet would use for key.
func (t *Tiered[V]) AdaptiveTTL(key string, baseTTL time.Duration) time.Duration {
	base := t.resolveTTL(baseTTL)
	if base < 0 {
		return base
	}

	switch f := t.freq.Frequency(key); {
	case f > hotKeyFrequency:
		return base * 2
	case f < coldKeyFrequency:
		if half := base / 2; half > 0 {
			return half
		}
	}

	return base
}

// Flush empties the local tier and this facade's shared namespace and
// resets the counters.
func (t *Tiered[V]) Flush(ctx context.Context) {
	t.local.Flush()
	if !t.remote.Clear(ctx) && t.remote.Ready() {
		t.logger.WarnContext(ctx, "shared cache namespace not cleared")
	}
	t.stats.reset()
}

// Keys returns the live keys of the local tier.
func (t *Tiered[V]) Keys() []string {
	return t.local.Keys()
}

// Stats returns the current counters and the local tier's size.
func (t *Tiered[V]) Stats() Stats {
	s := t.stats.snapshot()
	s.KeyCount = t.local.Len()
	s.MemoryUsageBytes = t.local.Size()
	s.SharedReady = t.remote.Ready()
	s.SharedState = t.remote.State()
	return s
}

// Cleanup tears the facade down: it empties and stops the local tier,
// clears the shared namespace, closes the shared connection (gracefully
// when it is ready, forcibly otherwise) and unregisters from the
// coordinator. Only the first call has effect; later calls return its result.
func (t *Tiered[V]) Cleanup(ctx context.Context) error {
	t.cleanup.Do(func() {
		t.cleanErr = t.teardown(ctx)
	})
	return t.cleanErr
}

func (t *Tiered[V]) teardown(ctx context.Context) error {
	var errs []error

	t.local.Flush()
	if err := t.local.Close(); err != nil {
		errs = append(errs, err)
	}

	if t.opts.clearOnCleanup && t.remote.Ready() {
		if !t.remote.Clear(ctx) {
			t.logger.WarnContext(ctx, "shared cache namespace not cleared on cleanup")
		}
	}

	if t.remote.Ready() {
		if err := t.remote.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	} else if err := t.remote.ForceClose(); err != nil {
		errs = append(errs, err)
	}

	if t.registrar != nil {
		t.registrar.Unregister(t.regName)
	}

	err := errors.Join(errs...)
	if err != nil {
		t.logger.ErrorContext(ctx, "cache cleanup finished with errors", slog.String("error", err.Error()))
	} else {
		t.logger.InfoContext(ctx, "cache cleaned up")
	}

	return err
}

// copyOf returns v, or a deep copy of it when CloneOnRead is set.
func (t *Tiered[V]) copyOf(ctx context.Context, key string, v V) V {
	if !t.cfg.CloneOnRead {
		return v
	}

	data, err := t.marshal.Marshal(v)
	if err == nil {
		var c V
		if c, err = t.marshal.Unmarshal(data); err == nil {
			return c
		}
	}

	t.logger.WarnContext(ctx, "cache value cannot be copied, returning shared instance",
		slog.String("key", key),
		slog.String("error", err.Error()),
	)
	return v
}

func (t *Tiered[V]) resolveTTL(ttl time.Duration) time.Duration {
	if ttl == 0 {
		return t.cfg.DefaultTTL
	}
	return ttl
}

func validKey(key string) bool {
	return strings.TrimSpace(key) != ""
}
