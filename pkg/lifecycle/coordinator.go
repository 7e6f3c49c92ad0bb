package lifecycle

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"slices"
	"sync"
	"time"

	"github.com/emrvault/tiercache/pkg/logger"
)

// CleanupFunc releases a resource. It should honour ctx's deadline.
type CleanupFunc func(ctx context.Context) error

type registration struct {
	fn       CleanupFunc
	name     string
	priority int
	seq      uint64
}

// Coordinator runs registered cleanup callbacks once, in priority order,
// under a single deadline.
//
// Callbacks run one at a time: ascending priority, then registration order.
// A callback that fails or panics is logged and the rest still run. When
// the deadline passes, the running callback is abandoned (its goroutine is
// left to finish on its own) and it and every callback not yet started are
// reported with ErrShutdownTimeout.
//
// Callbacks may call Unregister, including their own name; no lock is held
// while they run.
type Coordinator struct {
	entries  map[string]registration
	logger   *slog.Logger
	opts     *options
	done     chan struct{}
	result   error
	seq      uint64
	mu       sync.Mutex
	shutdown sync.Once
	closed   bool
}

// New creates a Coordinator.
//
// Example:
//
//	coord := lifecycle.New(lifecycle.WithLogger(log), lifecycle.WithTimeout(10*time.Second))
//	coord.Register("redis", lifecycle.PriorityConnections, redis.Shutdown(client))
//	if err := coord.Wait(ctx); err != nil {
//	    log.Error("shutdown", "error", err)
//	}
func New(opts ...Option) *Coordinator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logger.NewNope()
	}

	return &Coordinator{
		entries: make(map[string]registration),
		logger:  o.logger,
		opts:    o,
		done:    make(chan struct{}),
	}
}

// Register adds a cleanup callback under a unique name.
func (c *Coordinator) Register(name string, priority int, fn func(ctx context.Context) error) error {
	if name == "" || fn == nil {
		return ErrInvalidRegistration
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if _, ok := c.entries[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}

	c.seq++
	c.entries[name] = registration{name: name, priority: priority, fn: fn, seq: c.seq}

	return nil
}

// Unregister removes a callback and reports whether it was registered.
// Unregistering during shutdown does not stop a callback that already started.
func (c *Coordinator) Unregister(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[name]; !ok {
		return false
	}
	delete(c.entries, name)
	return true
}

// Len returns the number of registered callbacks.
func (c *Coordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Done is closed once Shutdown has finished.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Shutdown runs every registered callback and returns their joined errors.
// Only the first call does the work; concurrent and later calls wait for it
// and return the same result. Registering is refused from the moment
// Shutdown starts.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.shutdown.Do(func() {
		defer close(c.done)
		c.result = c.run(ctx)
	})
	<-c.done
	return c.result
}

// Wait blocks until one of the configured signals arrives, ctx is
// cancelled or Shutdown is called elsewhere, then runs (or joins) Shutdown.
// The shutdown deadline starts after the wait ends, so a cancelled ctx does
// not cut cleanup short.
func (c *Coordinator) Wait(ctx context.Context) error {
	sigCtx, stop := signal.NotifyContext(ctx, c.opts.signals...)
	defer stop()

	select {
	case <-sigCtx.Done():
		c.logger.Info("shutdown requested", slog.String("cause", context.Cause(sigCtx).Error()))
	case <-c.done:
	}

	return c.Shutdown(context.WithoutCancel(ctx))
}

// ShutdownOnPanic runs Shutdown when the calling goroutine is panicking,
// then re-panics. Use it as the first deferred call in main.
func (c *Coordinator) ShutdownOnPanic() {
	r := recover()
	if r == nil {
		return
	}

	c.logger.Error("panic, shutting down", slog.Any("panic", r))
	_ = c.Shutdown(context.Background())
	panic(r)
}

func (c *Coordinator) run(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.opts.timeout)
	defer cancel()

	start := time.Now()
	var errs []error

	for {
		// Re-read each time: a callback may have unregistered later ones.
		reg, ok := c.next()
		if !ok {
			break
		}

		if err := c.invoke(ctx, reg); err != nil {
			errs = append(errs, err)
			if errors.Is(err, ErrShutdownTimeout) {
				errs = append(errs, c.abandonRest()...)
				break
			}
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		c.logger.Error("shutdown completed with errors",
			slog.Duration("elapsed", time.Since(start)),
			slog.Int("failures", len(errs)),
		)
		return err
	}

	c.logger.Info("shutdown completed", slog.Duration("elapsed", time.Since(start)))
	return nil
}

// next removes and returns the first callback in run order.
func (c *Coordinator) next() (registration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) == 0 {
		return registration{}, false
	}

	ordered := c.ordered()
	reg := ordered[0]
	delete(c.entries, reg.name)

	return reg, true
}

// abandonRest drains callbacks that will not run because time ran out.
func (c *Coordinator) abandonRest() []error {
	c.mu.Lock()
	rest := c.ordered()
	c.entries = make(map[string]registration)
	c.mu.Unlock()

	errs := make([]error, 0, len(rest))
	for _, reg := range rest {
		c.logger.Error("cleanup skipped, shutdown deadline passed",
			slog.String("name", reg.name),
			slog.Int("priority", reg.priority),
		)
		errs = append(errs, &CleanupError{Name: reg.name, Priority: reg.priority, Err: ErrShutdownTimeout})
	}
	return errs
}

// ordered returns the registrations in run order. Caller must hold the mutex.
func (c *Coordinator) ordered() []registration {
	regs := make([]registration, 0, len(c.entries))
	for _, reg := range c.entries {
		regs = append(regs, reg)
	}
	slices.SortFunc(regs, func(a, b registration) int {
		if n := cmp.Compare(a.priority, b.priority); n != 0 {
			return n
		}
		return cmp.Compare(a.seq, b.seq)
	})
	return regs
}

// invoke runs one callback, recovering panics, and stops waiting for it
// when ctx expires.
func (c *Coordinator) invoke(ctx context.Context, reg registration) error {
	log := c.logger.With(slog.String("name", reg.name), slog.Int("priority", reg.priority))
	log.Debug("running cleanup")

	if err := ctx.Err(); err != nil {
		log.Error("cleanup skipped, shutdown deadline passed")
		return &CleanupError{Name: reg.name, Priority: reg.priority, Err: errors.Join(ErrShutdownTimeout, err)}
	}

	result := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("%w: %v", ErrCleanupPanic, r)
			}
		}()
		result <- reg.fn(ctx)
	}()

	select {
	case err := <-result:
		if err != nil {
			log.Error("cleanup failed", slog.String("error", err.Error()))
			return &CleanupError{Name: reg.name, Priority: reg.priority, Err: err}
		}
		return nil
	case <-ctx.Done():
		log.Error("cleanup abandoned, shutdown deadline passed")
		return &CleanupError{Name: reg.name, Priority: reg.priority, Err: errors.Join(ErrShutdownTimeout, ctx.Err())}
	}
}
