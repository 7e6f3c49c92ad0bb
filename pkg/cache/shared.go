package cache

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/emrvault/tiercache/pkg/logger"
	"github.com/emrvault/tiercache/pkg/redis"
)

// Shared store states.
const (
	StateReady    = "ready"
	StateDegraded = "degraded"
	StateDisabled = "disabled"
	StateClosed   = "closed"
)

const (
	stateReady int32 = iota
	stateDegraded
	stateDisabled
	stateClosed
)

var stateNames = [...]string{
	stateReady:    StateReady,
	stateDegraded: StateDegraded,
	stateDisabled: StateDisabled,
	stateClosed:   StateClosed,
}

const drainPollInterval = 5 * time.Millisecond

// Shared is the network tier: a Redis-backed store partitioned by namespace.
// Keys are stored as "{namespace}:{key}", with ":" and "%" in the namespace
// percent-encoded.
//
// No operation returns an error. Misses, transport failures and encoding
// failures all come back as a miss or false, with a warning logged. The first
// transport failure moves the store to degraded: calls short-circuit to a
// miss until a probe ping succeeds. A store built with a nil client is
// disabled for good.
type Shared struct {
	client   goredis.UniversalClient
	ping     func(context.Context) error
	logger   *slog.Logger
	opts     *sharedOptions
	done     chan struct{}
	probes   sync.WaitGroup
	closing  sync.Once
	state    atomic.Int32
	inflight atomic.Int64
}

// NewShared wraps a Redis client. Pass a nil client to get a disabled store
// that answers every call with a miss.
//
// Example:
//
//	client, err := redis.New(os.Getenv("CACHE_SHARED_URL"))
//	s := cache.NewShared(client, cache.WithSharedLogger(log))
//	defer s.Close(ctx)
func NewShared(client goredis.UniversalClient, opts ...SharedOption) *Shared {
	o := defaultSharedOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logger.NewNope()
	}

	s := &Shared{
		client: client,
		logger: o.logger,
		opts:   o,
		done:   make(chan struct{}),
	}

	if client == nil {
		s.state.Store(stateDisabled)
		return s
	}

	s.ping = redis.Healthcheck(client)

	if o.probeInterval > 0 {
		s.probes.Add(1)
		go s.probe()
	}

	return s
}

// Get fetches the raw value stored under namespace:key.
func (s *Shared) Get(ctx context.Context, namespace, key string) ([]byte, bool) {
	if !s.acquire() {
		return nil, false
	}
	defer s.release()

	data, err := s.client.Get(ctx, namespacedKey(namespace, key)).Bytes()
	if err != nil {
		if !redis.IsMiss(err) {
			s.fail(ctx, "get", namespace, key, err)
		}
		return nil, false
	}

	return data, true
}

// Set stores data under namespace:key. A zero or negative ttl stores
// without expiry. It reports whether the write was applied.
func (s *Shared) Set(ctx context.Context, namespace, key string, data []byte, ttl time.Duration) bool {
	if !s.acquire() {
		return false
	}
	defer s.release()

	if err := s.client.Set(ctx, namespacedKey(namespace, key), data, max(ttl, 0)).Err(); err != nil {
		s.fail(ctx, "set", namespace, key, err)
		return false
	}

	return true
}

// Delete removes namespace:key and reports whether something was removed.
func (s *Shared) Delete(ctx context.Context, namespace, key string) bool {
	if !s.acquire() {
		return false
	}
	defer s.release()

	n, err := s.client.Del(ctx, namespacedKey(namespace, key)).Result()
	if err != nil {
		s.fail(ctx, "delete", namespace, key, err)
		return false
	}

	return n > 0
}

// Exists reports whether namespace:key is stored.
func (s *Shared) Exists(ctx context.Context, namespace, key string) bool {
	if !s.acquire() {
		return false
	}
	defer s.release()

	n, err := s.client.Exists(ctx, namespacedKey(namespace, key)).Result()
	if err != nil {
		s.fail(ctx, "exists", namespace, key, err)
		return false
	}

	return n > 0
}

// Clear removes every key of a namespace using SCAN, which does not block
// the server. An empty namespace is refused: it would match other
// namespaces' keys.
func (s *Shared) Clear(ctx context.Context, namespace string) bool {
	if namespace == "" {
		s.logger.WarnContext(ctx, "refusing to clear shared cache without namespace")
		return false
	}
	if !s.acquire() {
		return false
	}
	defer s.release()

	keys, ok := s.scan(ctx, namespace)
	if !ok {
		return false
	}

	for batch := range slices.Chunk(keys, int(max(s.opts.scanCount, 1))) {
		if err := s.client.Del(ctx, batch...).Err(); err != nil {
			s.fail(ctx, "clear", namespace, "", err)
			return false
		}
	}

	return true
}

// scan collects every key of namespace before anything is deleted, so the
// result does not depend on how the server handles writes during a SCAN.
func (s *Shared) scan(ctx context.Context, namespace string) ([]string, bool) {
	pattern := escapeGlob(escapeNamespace(namespace)) + ":*"
	seen := make(map[string]struct{})
	var cursor uint64

	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, s.opts.scanCount).Result()
		if err != nil {
			s.fail(ctx, "clear", namespace, "", err)
			return nil, false
		}

		for _, k := range keys {
			seen[k] = struct{}{}
		}

		cursor = next
		if cursor == 0 {
			return slices.Sorted(maps.Keys(seen)), true
		}
	}
}

// Partition returns a view of the store bound to one namespace.
func (s *Shared) Partition(namespace string) *Partition {
	return &Partition{shared: s, namespace: namespace}
}

// Ready reports whether calls currently reach the server.
func (s *Shared) Ready() bool {
	return s.state.Load() == stateReady
}

// State returns one of StateReady, StateDegraded, StateDisabled or StateClosed.
func (s *Shared) State() string {
	return stateNames[s.state.Load()]
}

// Probe pings the server and updates the state accordingly.
// It reports whether the store is ready afterwards.
func (s *Shared) Probe(ctx context.Context) bool {
	switch s.state.Load() {
	case stateDisabled, stateClosed:
		return false
	}

	if err := s.ping(ctx); err != nil {
		if s.state.CompareAndSwap(stateReady, stateDegraded) {
			s.logger.WarnContext(ctx, "shared cache unreachable, serving from local tier only",
				slog.String("error", err.Error()),
			)
		}
		return false
	}

	if s.state.CompareAndSwap(stateDegraded, stateReady) {
		s.logger.InfoContext(ctx, "shared cache reachable again")
	}

	return s.Ready()
}

// Close stops the probe, waits for in-flight calls (bounded by ctx) and,
// when the store owns its client, closes the connection.
// Close and ForceClose are idempotent; only the first call has effect.
func (s *Shared) Close(ctx context.Context) error {
	return s.shutdown(ctx, false)
}

// ForceClose is Close without waiting for in-flight calls.
func (s *Shared) ForceClose() error {
	return s.shutdown(context.Background(), true)
}

func (s *Shared) shutdown(ctx context.Context, force bool) error {
	var err error

	s.closing.Do(func() {
		s.state.Store(stateClosed)
		close(s.done)
		s.probes.Wait()

		if s.client == nil {
			return
		}

		if !force {
			err = s.drain(ctx)
		}

		if s.opts.ownsClient {
			if cerr := s.client.Close(); cerr != nil && !errors.Is(cerr, goredis.ErrClosed) {
				err = errors.Join(err, cerr)
			}
		}
	})

	return err
}

// drain waits until no call is in flight.
func (s *Shared) drain(ctx context.Context) error {
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for s.inflight.Load() > 0 {
		select {
		case <-ctx.Done():
			return errors.Join(ErrCloseTimeout, ctx.Err())
		case <-ticker.C:
		}
	}

	return nil
}

// probe pings a degraded store until it answers again.
func (s *Shared) probe() {
	defer s.probes.Done()

	ticker := time.NewTicker(s.opts.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if s.state.Load() != stateDegraded {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), s.opts.probeTimeout)
			s.Probe(ctx)
			cancel()
		}
	}
}

// acquire registers a call before checking the state, so a concurrent
// Close either sees it in flight or the call sees the store closed.
func (s *Shared) acquire() bool {
	s.inflight.Add(1)
	if s.state.Load() != stateReady {
		s.inflight.Add(-1)
		return false
	}
	return true
}

func (s *Shared) release() {
	s.inflight.Add(-1)
}

// fail logs a failed call and degrades the store on transport errors.
// Errors caused by the caller's own context do not degrade it.
func (s *Shared) fail(ctx context.Context, op, namespace, key string, err error) {
	s.logger.WarnContext(ctx, "shared cache operation failed",
		slog.String("op", op),
		slog.String("namespace", namespace),
		slog.String("key", key),
		slog.String("error", err.Error()),
	)

	if ctx.Err() != nil || !redis.IsTransportError(err) {
		return
	}

	if s.state.CompareAndSwap(stateReady, stateDegraded) {
		s.logger.WarnContext(ctx, "shared cache unreachable, serving from local tier only",
			slog.String("error", err.Error()),
		)
	}
}

func namespacedKey(namespace, key string) string {
	if namespace == "" {
		return key
	}
	return escapeNamespace(namespace) + ":" + key
}

// A namespace containing the separator would otherwise share keys (and a
// Clear pattern) with a shorter namespace.
var namespaceReplacer = strings.NewReplacer("%", "%25", ":", "%3A")

func escapeNamespace(namespace string) string {
	return namespaceReplacer.Replace(namespace)
}

var globReplacer = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globReplacer.Replace(s)
}

// Partition is a Shared store bound to one namespace. It implements Store.
type Partition struct {
	shared    *Shared
	namespace string
}

// Namespace returns the namespace this partition is bound to.
func (p *Partition) Namespace() string { return p.namespace }

func (p *Partition) Get(ctx context.Context, key string) ([]byte, bool) {
	return p.shared.Get(ctx, p.namespace, key)
}

func (p *Partition) Set(ctx context.Context, key string, data []byte, ttl time.Duration) bool {
	return p.shared.Set(ctx, p.namespace, key, data, ttl)
}

func (p *Partition) Delete(ctx context.Context, key string) bool {
	return p.shared.Delete(ctx, p.namespace, key)
}

func (p *Partition) Exists(ctx context.Context, key string) bool {
	return p.shared.Exists(ctx, p.namespace, key)
}

// Clear removes every key of the partition's namespace.
func (p *Partition) Clear(ctx context.Context) bool {
	return p.shared.Clear(ctx, p.namespace)
}

func (p *Partition) Ready() bool { return p.shared.Ready() }

func (p *Partition) State() string { return p.shared.State() }

// Close closes the underlying Shared store.
func (p *Partition) Close(ctx context.Context) error { return p.shared.Close(ctx) }

// ForceClose force-closes the underlying Shared store.
func (p *Partition) ForceClose() error { return p.shared.ForceClose() }

var _ Store = (*Partition)(nil)
