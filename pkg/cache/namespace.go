package cache

import (
	"context"
	"log/slog"
	"time"
)

// Namespace is a typed view over one namespace of a Shared store.
// Values go through the marshaler on the way in and out; use [Raw] to
// store strings verbatim.
type Namespace[V any] struct {
	partition  *Partition
	marshal    Marshaler[V]
	logger     *slog.Logger
	defaultTTL time.Duration
}

// NamespaceOption configures a Namespace.
type NamespaceOption func(*namespaceOptions)

type namespaceOptions struct {
	defaultTTL time.Duration
}

// WithDefaultTTL sets the TTL used when Set is given zero.
// Default: Config's DefaultTTL (5 minutes)
func WithDefaultTTL(d time.Duration) NamespaceOption {
	return func(o *namespaceOptions) {
		if d != 0 {
			o.defaultTTL = d
		}
	}
}

// NewNamespace binds a marshaler to a namespace of s.
//
// Example:
//
//	fhir := cache.NewNamespace(shared, cachekey.NamespaceFHIR, cache.JSON[Bundle]())
//	fhir.Set(ctx, "Patient/42", bundle, time.Hour)
//	fhir.Clear(ctx)
func NewNamespace[V any](s *Shared, namespace string, m Marshaler[V], opts ...NamespaceOption) *Namespace[V] {
	o := &namespaceOptions{defaultTTL: DefaultConfig().DefaultTTL}
	for _, opt := range opts {
		opt(o)
	}
	if m == nil {
		m = JSON[V]()
	}
	return &Namespace[V]{
		partition:  s.Partition(namespace),
		marshal:    m,
		logger:     s.logger,
		defaultTTL: o.defaultTTL,
	}
}

// Name returns the namespace.
func (n *Namespace[V]) Name() string {
	return n.partition.Namespace()
}

// Get fetches and decodes a value. Undecodable data is reported as a miss.
func (n *Namespace[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V

	data, ok := n.partition.Get(ctx, key)
	if !ok {
		return zero, false
	}

	v, err := n.marshal.Unmarshal(data)
	if err != nil {
		n.logger.WarnContext(ctx, "shared cache value cannot be decoded",
			slog.String("namespace", n.Name()),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return zero, false
	}

	return v, true
}

// Set encodes and stores a value. A zero ttl uses the default TTL; a
// negative one stores without expiry.
func (n *Namespace[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) bool {
	data, err := n.marshal.Marshal(value)
	if err != nil {
		n.logger.WarnContext(ctx, "shared cache value cannot be encoded",
			slog.String("namespace", n.Name()),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return false
	}

	if ttl == 0 {
		ttl = n.defaultTTL
	}

	return n.partition.Set(ctx, key, data, ttl)
}

// Delete removes key and reports whether something was removed.
func (n *Namespace[V]) Delete(ctx context.Context, key string) bool {
	return n.partition.Delete(ctx, key)
}

// Exists reports whether key is stored.
func (n *Namespace[V]) Exists(ctx context.Context, key string) bool {
	return n.partition.Exists(ctx, key)
}

// Clear removes every key of the namespace.
func (n *Namespace[V]) Clear(ctx context.Context) bool {
	return n.partition.Clear(ctx)
}
