package cache_test

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/emrvault/tiercache/pkg/cache"
	"github.com/emrvault/tiercache/pkg/logger"
)

type backend struct {
	name string
	new  func(t *testing.T) cache.Local[string]
}

// backends returns both local implementations; every contract test runs
// against each of them.
func backends() []backend {
	return []backend{
		{
			name: "memory",
			new: func(t *testing.T) cache.Local[string] {
				m := cache.NewMemory[string](cache.WithCleanupInterval(0))
				t.Cleanup(func() { _ = m.Close() })
				return m
			},
		},
		{
			name: "ristretto",
			new: func(t *testing.T) cache.Local[string] {
				r, err := cache.NewRistretto[string](100)
				require.NoError(t, err)
				t.Cleanup(func() { _ = r.Close() })
				return r
			},
		},
	}
}

func TestLocal_Contract(t *testing.T) {
	t.Parallel()

	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			t.Parallel()

			t.Run("returns stored value", func(t *testing.T) {
				t.Parallel()

				l := b.new(t)
				require.True(t, l.Set("key", "value", time.Minute, 5))

				val, ok := l.Get("key")
				require.True(t, ok)
				require.Equal(t, "value", val)
			})

			t.Run("missing key is absent", func(t *testing.T) {
				t.Parallel()

				l := b.new(t)
				_, ok := l.Get("missing")
				require.False(t, ok)
				require.False(t, l.Has("missing"))
			})

			t.Run("expired key is absent without a sweep", func(t *testing.T) {
				t.Parallel()

				l := b.new(t)
				require.True(t, l.Set("key", "value", 10*time.Millisecond, 1))

				time.Sleep(30 * time.Millisecond)

				_, ok := l.Get("key")
				require.False(t, ok)
				require.False(t, l.Has("key"))
			})

			t.Run("zero and negative TTL never expire", func(t *testing.T) {
				t.Parallel()

				l := b.new(t)
				require.True(t, l.Set("zero", "a", 0, 1))
				require.True(t, l.Set("negative", "b", -time.Second, 1))

				time.Sleep(20 * time.Millisecond)

				require.True(t, l.Has("zero"))
				require.True(t, l.Has("negative"))
			})

			t.Run("overwrites existing key", func(t *testing.T) {
				t.Parallel()

				l := b.new(t)
				require.True(t, l.Set("key", "one", time.Minute, 3))
				require.True(t, l.Set("key", "two", time.Minute, 3))

				val, ok := l.Get("key")
				require.True(t, ok)
				require.Equal(t, "two", val)
				require.Equal(t, 1, l.Len())
			})

			t.Run("delete reports removed count", func(t *testing.T) {
				t.Parallel()

				l := b.new(t)
				require.True(t, l.Set("key", "value", time.Minute, 1))

				require.Equal(t, 1, l.Delete("key"))
				require.Equal(t, 0, l.Delete("key"))
				require.Equal(t, 0, l.Delete("missing"))

				_, ok := l.Get("key")
				require.False(t, ok)
			})

			t.Run("keys purges expired entries", func(t *testing.T) {
				t.Parallel()

				l := b.new(t)
				require.True(t, l.Set("short", "a", 10*time.Millisecond, 1))
				require.True(t, l.Set("long", "b", time.Minute, 1))
				require.True(t, l.Set("forever", "c", 0, 1))

				time.Sleep(30 * time.Millisecond)

				keys := l.Keys()
				sort.Strings(keys)
				require.Equal(t, []string{"forever", "long"}, keys)
				require.Equal(t, 2, l.Len())
			})

			t.Run("size follows cost", func(t *testing.T) {
				t.Parallel()

				l := b.new(t)
				require.True(t, l.Set("a", "x", time.Minute, 10))
				require.True(t, l.Set("b", "y", time.Minute, 5))
				require.Equal(t, int64(15), l.Size())

				require.True(t, l.Set("a", "z", time.Minute, 2))
				require.Equal(t, int64(7), l.Size())

				l.Delete("b")
				require.Equal(t, int64(2), l.Size())
			})

			t.Run("flush removes everything", func(t *testing.T) {
				t.Parallel()

				l := b.new(t)
				require.True(t, l.Set("a", "1", time.Minute, 1))
				require.True(t, l.Set("b", "2", time.Minute, 1))

				l.Flush()

				require.Equal(t, 0, l.Len())
				require.Equal(t, int64(0), l.Size())
				require.Empty(t, l.Keys())
				require.False(t, l.Has("a"))
			})

			t.Run("set after close is rejected", func(t *testing.T) {
				t.Parallel()

				l := b.new(t)
				require.NoError(t, l.Close())
				require.NoError(t, l.Close())

				require.False(t, l.Set("key", "value", time.Minute, 1))
			})

			t.Run("concurrent access", func(t *testing.T) {
				t.Parallel()

				l := b.new(t)

				var wg sync.WaitGroup
				for i := range 20 {
					wg.Add(1)
					go func() {
						defer wg.Done()
						key := string(rune('a' + i))
						for range 50 {
							l.Set(key, key, time.Minute, 1)
							l.Get(key)
							l.Has(key)
						}
					}()
				}
				wg.Wait()

				require.Equal(t, 20, l.Len())
			})
		})
	}
}

func TestMemory_Eviction(t *testing.T) {
	t.Parallel()

	t.Run("evicts least recently used at capacity", func(t *testing.T) {
		t.Parallel()

		m := cache.NewMemory[string](cache.WithMaxEntries(2), cache.WithCleanupInterval(0))
		defer m.Close()

		m.Set("a", "1", time.Minute, 1)
		m.Set("b", "2", time.Minute, 1)

		// Access "a" to make it recently used.
		_, ok := m.Get("a")
		require.True(t, ok)

		// Add "c": should evict "b" (LRU), not "a".
		m.Set("c", "3", time.Minute, 1)

		require.True(t, m.Has("a"), "a should still exist (recently used)")
		require.False(t, m.Has("b"), "b should have been evicted")
		require.True(t, m.Has("c"))
	})

	t.Run("keys are ordered by recency", func(t *testing.T) {
		t.Parallel()

		m := cache.NewMemory[string](cache.WithCleanupInterval(0))
		defer m.Close()

		m.Set("a", "1", time.Minute, 1)
		m.Set("b", "2", time.Minute, 1)
		m.Set("c", "3", time.Minute, 1)
		m.Get("a")

		require.Equal(t, []string{"a", "c", "b"}, m.Keys())
	})

	t.Run("callback fires on eviction, expiry and flush", func(t *testing.T) {
		t.Parallel()

		m := cache.NewMemory[string](cache.WithMaxEntries(1), cache.WithCleanupInterval(0))
		defer m.Close()

		var evicted []string
		m.SetEvictCallback(func(key, _ string) {
			evicted = append(evicted, key)
		})

		m.Set("a", "1", time.Minute, 1)
		m.Set("b", "2", 5*time.Millisecond, 1)
		time.Sleep(20 * time.Millisecond)
		m.Get("b")
		m.Set("c", "3", time.Minute, 1)
		m.Flush()

		require.Equal(t, []string{"a", "b", "c"}, evicted)
	})
}

func TestMemory_Janitor(t *testing.T) {
	t.Parallel()

	m := cache.NewMemory[string](cache.WithCleanupInterval(10 * time.Millisecond))
	defer m.Close()

	m.Set("a", "1", 5*time.Millisecond, 1)
	m.Set("b", "2", time.Minute, 1)

	require.Eventually(t, func() bool {
		return m.Len() == 1
	}, time.Second, 10*time.Millisecond)
	require.True(t, m.Has("b"))
}

func TestMemory_ReadsAfterClose(t *testing.T) {
	t.Parallel()

	m := cache.NewMemory[string](cache.WithCleanupInterval(0))
	m.Set("key", "value", time.Minute, 1)
	require.NoError(t, m.Close())

	val, ok := m.Get("key")
	require.True(t, ok)
	require.Equal(t, "value", val)
}

func TestNewLocal(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		backend string
		want    any
	}{
		{name: "memory backend", backend: cache.BackendMemory, want: &cache.Memory[string]{}},
		{name: "ristretto backend", backend: cache.BackendRistretto, want: &cache.Ristretto[string]{}},
		{name: "empty backend defaults to ristretto", backend: "", want: &cache.Ristretto[string]{}},
		{name: "unknown backend falls back to memory", backend: "lmdb", want: &cache.Memory[string]{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := cache.DefaultConfig()
			cfg.LocalBackend = tc.backend

			l := cache.NewLocal[string](cfg, logger.NewNope())
			defer l.Close()

			require.IsType(t, tc.want, l)
			require.True(t, l.Set("key", "value", time.Minute, 1))
			require.True(t, l.Has("key"))
		})
	}
}
