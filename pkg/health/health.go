package health

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/emrvault/tiercache/pkg/logger"
)

const (
	defaultTimeout = 5 * time.Second

	// StatusHealthy indicates all checks passed.
	StatusHealthy = "healthy"
	// StatusDegraded indicates at least one check reported ErrDegraded and none failed.
	StatusDegraded = "degraded"
	// StatusUnhealthy indicates one or more checks failed.
	StatusUnhealthy = "unhealthy"
)

// CheckFunc is the standard health check function signature.
// redis.Healthcheck and CacheCheck return it.
type CheckFunc func(ctx context.Context) error

// Checks is a map of named health check functions.
type Checks map[string]CheckFunc

// Response represents a health check response.
type Response struct {
	Checks map[string]Check `json:"checks,omitempty"`
	Status string           `json:"status"`
}

// Check represents the status of a single health check.
type Check struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// config holds health check configuration.
type config struct {
	logger  *slog.Logger
	timeout time.Duration
}

// Option configures health check behavior.
type Option func(*config)

// WithTimeout sets the timeout for all checks.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger for error logging.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// newConfig creates a config with defaults, modified by options.
func newConfig(opts ...Option) *config {
	cfg := &config{
		timeout: defaultTimeout,
		logger:  logger.NewNope(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// runChecks executes all checks in parallel and returns the aggregated result.
func runChecks(ctx context.Context, checks Checks, cfg *config) *Response {
	if len(checks) == 0 {
		return &Response{Status: StatusHealthy}
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]Check, len(checks))
	)

	for name, check := range checks {
		wg.Add(1)
		go func(name string, check CheckFunc) {
			defer wg.Done()

			result := evaluate(ctx, check)
			if result.Status != StatusHealthy {
				cfg.logger.WarnContext(ctx, "health check not healthy",
					slog.String("check", name),
					slog.String("status", result.Status),
					slog.String("error", result.Error),
				)
			}

			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, check)
	}

	wg.Wait()

	return &Response{
		Status: aggregate(results),
		Checks: results,
	}
}

func evaluate(ctx context.Context, check CheckFunc) Check {
	err := check(ctx)
	switch {
	case err == nil:
		return Check{Status: StatusHealthy}
	case errors.Is(err, ErrDegraded):
		return Check{Status: StatusDegraded, Error: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return Check{Status: StatusUnhealthy, Error: errors.Join(ErrCheckTimeout, err).Error()}
	default:
		return Check{Status: StatusUnhealthy, Error: err.Error()}
	}
}

// aggregate picks the worst status among results.
func aggregate(results map[string]Check) string {
	status := StatusHealthy
	for _, r := range results {
		switch r.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}

// Degradable turns any failure of check into a degraded result.
// Use it for dependencies the service can run without.
func Degradable(check CheckFunc) CheckFunc {
	return func(ctx context.Context) error {
		if err := check(ctx); err != nil {
			return errors.Join(ErrDegraded, err)
		}
		return nil
	}
}
