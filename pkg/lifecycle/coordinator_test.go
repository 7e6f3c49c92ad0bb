package lifecycle_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/emrvault/tiercache/pkg/lifecycle"
)

// recorder collects the order in which callbacks ran.
type recorder struct {
	names []string
	mu    sync.Mutex
}

func (r *recorder) cleanup(name string) lifecycle.CleanupFunc {
	return func(context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.names = append(r.names, name)
		return nil
	}
}

func (r *recorder) order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

func TestCoordinator_Register(t *testing.T) {
	t.Parallel()

	t.Run("rejects invalid registrations", func(t *testing.T) {
		t.Parallel()

		c := lifecycle.New()
		require.ErrorIs(t, c.Register("", 1, func(context.Context) error { return nil }), lifecycle.ErrInvalidRegistration)
		require.ErrorIs(t, c.Register("x", 1, nil), lifecycle.ErrInvalidRegistration)
		require.Zero(t, c.Len())
	})

	t.Run("rejects duplicate names", func(t *testing.T) {
		t.Parallel()

		c := lifecycle.New()
		fn := func(context.Context) error { return nil }
		require.NoError(t, c.Register("redis", lifecycle.PriorityConnections, fn))
		require.ErrorIs(t, c.Register("redis", lifecycle.PriorityCache, fn), lifecycle.ErrDuplicateName)
		require.Equal(t, 1, c.Len())
	})

	t.Run("rejects registration after shutdown", func(t *testing.T) {
		t.Parallel()

		c := lifecycle.New()
		require.NoError(t, c.Shutdown(context.Background()))
		require.ErrorIs(t, c.Register("late", 1, func(context.Context) error { return nil }), lifecycle.ErrClosed)
	})

	t.Run("unregister removes callback", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		c := lifecycle.New()
		require.NoError(t, c.Register("a", 1, rec.cleanup("a")))
		require.NoError(t, c.Register("b", 2, rec.cleanup("b")))

		require.True(t, c.Unregister("a"))
		require.False(t, c.Unregister("a"))
		require.False(t, c.Unregister("unknown"))

		require.NoError(t, c.Shutdown(context.Background()))
		require.Equal(t, []string{"b"}, rec.order())
	})
}

func TestCoordinator_Shutdown(t *testing.T) {
	t.Parallel()

	t.Run("runs in priority then registration order", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		c := lifecycle.New()
		require.NoError(t, c.Register("redis", lifecycle.PriorityConnections, rec.cleanup("redis")))
		require.NoError(t, c.Register("cache-a", lifecycle.PriorityCache, rec.cleanup("cache-a")))
		require.NoError(t, c.Register("http", lifecycle.PriorityHTTP, rec.cleanup("http")))
		require.NoError(t, c.Register("cache-b", lifecycle.PriorityCache, rec.cleanup("cache-b")))

		require.NoError(t, c.Shutdown(context.Background()))
		require.Equal(t, []string{"http", "cache-a", "cache-b", "redis"}, rec.order())
		require.Zero(t, c.Len())
	})

	t.Run("extreme priorities keep their order", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		c := lifecycle.New()
		require.NoError(t, c.Register("last", math.MaxInt, rec.cleanup("last")))
		require.NoError(t, c.Register("first", math.MinInt, rec.cleanup("first")))
		require.NoError(t, c.Register("middle", 0, rec.cleanup("middle")))

		require.NoError(t, c.Shutdown(context.Background()))
		require.Equal(t, []string{"first", "middle", "last"}, rec.order())
	})

	t.Run("failure does not stop remaining callbacks", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		errBoom := errors.New("boom")
		c := lifecycle.New()
		require.NoError(t, c.Register("first", 1, func(context.Context) error { return errBoom }))
		require.NoError(t, c.Register("second", 2, rec.cleanup("second")))

		err := c.Shutdown(context.Background())
		require.ErrorIs(t, err, errBoom)

		var cleanupErr *lifecycle.CleanupError
		require.ErrorAs(t, err, &cleanupErr)
		require.Equal(t, "first", cleanupErr.Name)
		require.Equal(t, []string{"second"}, rec.order())
	})

	t.Run("panic is isolated", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		c := lifecycle.New()
		require.NoError(t, c.Register("panics", 1, func(context.Context) error { panic("bad state") }))
		require.NoError(t, c.Register("after", 2, rec.cleanup("after")))

		err := c.Shutdown(context.Background())
		require.ErrorIs(t, err, lifecycle.ErrCleanupPanic)
		require.Contains(t, err.Error(), "bad state")
		require.Equal(t, []string{"after"}, rec.order())
	})

	t.Run("deadline abandons slow and pending callbacks", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		c := lifecycle.New(lifecycle.WithTimeout(30 * time.Millisecond))
		release := make(chan struct{})
		defer close(release)

		require.NoError(t, c.Register("fast", 1, rec.cleanup("fast")))
		require.NoError(t, c.Register("stuck", 2, func(context.Context) error {
			<-release
			return nil
		}))
		require.NoError(t, c.Register("never", 3, rec.cleanup("never")))

		start := time.Now()
		err := c.Shutdown(context.Background())
		require.Less(t, time.Since(start), time.Second)

		require.ErrorIs(t, err, lifecycle.ErrShutdownTimeout)
		require.Contains(t, err.Error(), "stuck")
		require.Contains(t, err.Error(), "never")
		require.Equal(t, []string{"fast"}, rec.order())
	})

	t.Run("callback may unregister itself", func(t *testing.T) {
		t.Parallel()

		c := lifecycle.New()
		var unregistered bool
		require.NoError(t, c.Register("self", 1, func(context.Context) error {
			unregistered = c.Unregister("self")
			return nil
		}))

		require.NoError(t, c.Shutdown(context.Background()))
		require.False(t, unregistered, "running callback is no longer registered")
	})

	t.Run("callback may unregister a later one", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		c := lifecycle.New()
		require.NoError(t, c.Register("owner", 1, func(context.Context) error {
			c.Unregister("owned")
			return nil
		}))
		require.NoError(t, c.Register("owned", 2, rec.cleanup("owned")))

		require.NoError(t, c.Shutdown(context.Background()))
		require.Empty(t, rec.order())
	})

	t.Run("runs once", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		c := lifecycle.New()
		require.NoError(t, c.Register("a", 1, rec.cleanup("a")))

		var wg sync.WaitGroup
		for range 5 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = c.Shutdown(context.Background())
			}()
		}
		wg.Wait()

		require.NoError(t, c.Shutdown(context.Background()))
		require.Equal(t, []string{"a"}, rec.order())

		select {
		case <-c.Done():
		default:
			t.Fatal("Done must be closed after Shutdown")
		}
	})
}

func TestCoordinator_Wait(t *testing.T) {
	t.Parallel()

	t.Run("context cancellation triggers shutdown", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		c := lifecycle.New(lifecycle.WithSignals(syscall.SIGUSR2))
		require.NoError(t, c.Register("a", 1, rec.cleanup("a")))

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- c.Wait(ctx) }()

		cancel()

		select {
		case err := <-errCh:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("Wait did not return")
		}
		require.Equal(t, []string{"a"}, rec.order())
	})

	t.Run("returns when shutdown happens elsewhere", func(t *testing.T) {
		t.Parallel()

		c := lifecycle.New(lifecycle.WithSignals(syscall.SIGUSR2))

		errCh := make(chan error, 1)
		go func() { errCh <- c.Wait(context.Background()) }()

		require.NoError(t, c.Shutdown(context.Background()))

		select {
		case err := <-errCh:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("Wait did not return")
		}
	})
}

func TestCoordinator_ShutdownOnPanic(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	c := lifecycle.New()
	require.NoError(t, c.Register("a", 1, rec.cleanup("a")))

	require.PanicsWithValue(t, "fatal", func() {
		defer c.ShutdownOnPanic()
		panic("fatal")
	})
	require.Equal(t, []string{"a"}, rec.order())
}
