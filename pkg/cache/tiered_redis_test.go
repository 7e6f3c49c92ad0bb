package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/emrvault/tiercache/pkg/cache"
)

func TestTiered_Redis(t *testing.T) {
	t.Parallel()

	t.Run("second instance reads through the shared tier", func(t *testing.T) {
		t.Parallel()

		_, client := newMiniredis(t)
		ctx := context.Background()
		cfg := testConfig()

		writer := cache.New(ctx, cfg, cache.JSON[patient](), cache.WithSharedClient(client))
		reader := cache.New(ctx, cfg, cache.JSON[patient](), cache.WithSharedClient(client))
		defer reader.Cleanup(ctx)

		require.Equal(t, cache.StateReady, writer.Stats().SharedState)
		require.True(t, writer.Set(ctx, "patient:42", patient{Name: "Ann"}, 5*time.Minute))

		got, ok := reader.Get(ctx, "patient:42")
		require.True(t, ok)
		require.Equal(t, patient{Name: "Ann"}, got)
		require.Equal(t, int64(1), reader.Stats().L2Hits)

		require.NoError(t, writer.Cleanup(ctx))
		require.NoError(t, client.Ping(ctx).Err(), "borrowed client must stay open")
	})

	t.Run("namespaces isolate facades", func(t *testing.T) {
		t.Parallel()

		_, client := newMiniredis(t)
		ctx := context.Background()

		cfgA, cfgB := testConfig(), testConfig()
		cfgA.Namespace, cfgB.Namespace = "a", "b"

		a := cache.New(ctx, cfgA, cache.JSON[int](), cache.WithSharedClient(client))
		b := cache.New(ctx, cfgB, cache.JSON[int](), cache.WithSharedClient(client))
		defer a.Cleanup(ctx)
		defer b.Cleanup(ctx)

		require.True(t, a.Set(ctx, "x", 1, time.Minute))
		require.True(t, b.Set(ctx, "x", 2, time.Minute))

		a.Flush(ctx)

		_, ok := a.Get(ctx, "x")
		require.False(t, ok)

		got, ok := b.Get(ctx, "x")
		require.True(t, ok)
		require.Equal(t, 2, got)
	})

	t.Run("ttl expires in both tiers", func(t *testing.T) {
		t.Parallel()

		mr, client := newMiniredis(t)
		ctx := context.Background()

		c := cache.New(ctx, testConfig(), cache.JSON[string](), cache.WithSharedClient(client))
		defer c.Cleanup(ctx)

		require.True(t, c.Set(ctx, "key", "v", time.Second))
		require.Equal(t, time.Second, mr.TTL("medical_records:key"))

		mr.FastForward(2 * time.Second)
		time.Sleep(1100 * time.Millisecond)

		_, ok := c.Get(ctx, "key")
		require.False(t, ok)
	})

	t.Run("keeps serving locally when the server goes away", func(t *testing.T) {
		t.Parallel()

		mr, client := newMiniredis(t)
		ctx := context.Background()

		c := cache.New(ctx, testConfig(), cache.JSON[string](), cache.WithSharedClient(client))
		defer c.Cleanup(ctx)

		require.True(t, c.Set(ctx, "before", "1", time.Minute))

		mr.Close()

		require.True(t, c.Set(ctx, "during", "2", time.Minute))

		got, ok := c.Get(ctx, "before")
		require.True(t, ok)
		require.Equal(t, "1", got)

		got, ok = c.Get(ctx, "during")
		require.True(t, ok)
		require.Equal(t, "2", got)

		_, ok = c.Get(ctx, "never-set")
		require.False(t, ok)

		stats := c.Stats()
		require.Equal(t, int64(2), stats.Hits)
		require.Equal(t, int64(1), stats.Misses)
		require.Equal(t, cache.StateDegraded, stats.SharedState)
	})

	t.Run("cleanup clears namespace and closes owned client", func(t *testing.T) {
		t.Parallel()

		mr, _ := newMiniredis(t)
		ctx := context.Background()

		cfg := testConfig()
		cfg.SharedEnabled = true
		cfg.SharedURL = "redis://" + mr.Addr()

		reg := newFakeRegistrar()
		c := cache.New(ctx, cfg, cache.JSON[string](), cache.WithCoordinator(reg))

		require.True(t, c.Set(ctx, "key", "v", time.Minute))
		require.NoError(t, mr.Set("sessions:other", "kept"))

		require.NoError(t, c.Cleanup(ctx))

		require.Equal(t, []string{"sessions:other"}, mr.Keys())
		require.Equal(t, cache.StateClosed, c.Stats().SharedState)
		require.Len(t, reg.unregistered, 1)
	})
}
