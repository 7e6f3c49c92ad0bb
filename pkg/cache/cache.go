package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Marshaler serializes and deserializes cache values for the shared tier
// and for defensive copies when CloneOnRead is enabled.
type Marshaler[V any] interface {
	Marshal(v V) ([]byte, error)
	Unmarshal(data []byte) (V, error)
}

// JSON returns the default JSON marshaler.
func JSON[V any]() Marshaler[V] {
	return jsonMarshaler[V]{}
}

type jsonMarshaler[V any] struct{}

func (jsonMarshaler[V]) Marshal(v V) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Join(ErrMarshal, err)
	}
	return data, nil
}

func (jsonMarshaler[V]) Unmarshal(data []byte) (V, error) {
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return v, errors.Join(ErrUnmarshal, err)
	}
	return v, nil
}

// Raw stores strings verbatim, without any encoding.
// Use it for values that are already serialized (tokens, pre-rendered JSON).
func Raw() Marshaler[string] {
	return rawMarshaler{}
}

type rawMarshaler struct{}

func (rawMarshaler) Marshal(v string) ([]byte, error) { return []byte(v), nil }

func (rawMarshaler) Unmarshal(data []byte) (string, error) { return string(data), nil }

// Registrar is the part of a lifecycle coordinator the facade depends on.
// *lifecycle.Coordinator satisfies it.
type Registrar interface {
	Register(name string, priority int, fn func(ctx context.Context) error) error
	Unregister(name string) bool
}

// GetOrLoad returns the cached value for key, or calls load on a miss and
// caches its result for ttl. Concurrent misses for the same key on the same
// facade share a single load call.
//
// Errors from load are returned as is and nothing is cached. Cache failures
// never surface: the value from load is returned even if caching it failed.
func GetOrLoad[V any](ctx context.Context, t *Tiered[V], key string, ttl time.Duration, load func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := t.Get(ctx, key); ok {
		return v, nil
	}

	res, err, _ := t.loads.Do(key, func() (any, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		t.Set(ctx, key, v, ttl)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}

	v, _ := res.(V)
	return v, nil
}
