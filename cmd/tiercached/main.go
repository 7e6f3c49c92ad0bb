// Command tiercached runs the record caches behind an admin HTTP API.
//
// Usage:
//
//	tiercached [-config settings.yaml]
//
// Settings come from the environment (and a .env file when present);
// a YAML file given with -config overrides them.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/emrvault/tiercache/internal/admin"
	"github.com/emrvault/tiercache/internal/reporter"
	"github.com/emrvault/tiercache/internal/server"
	"github.com/emrvault/tiercache/pkg/cache"
	"github.com/emrvault/tiercache/pkg/cachekey"
	"github.com/emrvault/tiercache/pkg/health"
	"github.com/emrvault/tiercache/pkg/lifecycle"
	"github.com/emrvault/tiercache/pkg/logger"
	"github.com/emrvault/tiercache/pkg/metrics"
	"github.com/emrvault/tiercache/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "YAML file overriding environment settings")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.New(logger.Config{}).Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New(cfg.Log, requestID)

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("tiercached stopped with errors", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// requestID adds chi's request ID to log records.
func requestID(ctx context.Context) (slog.Attr, bool) {
	id := middleware.GetReqID(ctx)
	if id == "" {
		return slog.Attr{}, false
	}
	return slog.String("request_id", id), true
}

type rawCache = cache.Tiered[json.RawMessage]

func run(ctx context.Context, cfg Config, log *slog.Logger) error {
	coord := lifecycle.New(
		lifecycle.WithLogger(logger.Component(log, "lifecycle")),
		lifecycle.WithTimeout(cfg.ShutdownTimeout),
	)
	defer coord.ShutdownOnPanic()

	client := openRedis(ctx, cfg, log, coord)
	if client == nil {
		cfg.Cache.SharedEnabled = false
	}

	newCache := func(name, namespace string, opts ...cache.Option) *rawCache {
		c := cfg.Cache
		c.Namespace = namespace
		opts = append(opts,
			cache.WithName(name),
			cache.WithLogger(log),
			cache.WithCoordinator(coord),
		)
		if client != nil {
			opts = append(opts, cache.WithSharedClient(client))
		}
		return cache.New(ctx, c, cache.JSON[json.RawMessage](), opts...)
	}

	caches := []*rawCache{
		newCache("general", cfg.Cache.Namespace),
		newCache("medical_records", cachekey.NamespaceMedicalRecords),
		newCache("fhir", cachekey.NamespaceFHIR),
		// Sessions outlive a single process.
		newCache("sessions", cachekey.NamespaceSessions, cache.WithSharedClearOnCleanup(false)),
	}

	sources := make([]metrics.Source, 0, len(caches))
	adminCaches := make([]admin.Cache, 0, len(caches))
	checks := health.Checks{}
	for _, c := range caches {
		sources = append(sources, c)
		adminCaches = append(adminCaches, c)
		checks["cache:"+c.Name()] = health.CacheCheck(c)
	}
	if client != nil {
		checks["redis"] = health.Degradable(redis.Healthcheck(client))
	}

	rep, err := reporter.New(cfg.StatsSchedule, log, sources...)
	if err != nil {
		return errors.Join(err, coord.Shutdown(ctx))
	}
	rep.Start()
	if err := coord.Register("stats-reporter", lifecycle.PriorityHTTP, rep.Shutdown); err != nil {
		return errors.Join(err, coord.Shutdown(ctx))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Get("/health/live", health.LivenessHandler())
	r.Get("/health/ready", health.ReadinessHandler(checks, health.WithLogger(log)))
	r.Handle("/metrics", metrics.Handler(metrics.NewRegistry(metrics.NewCollector(cfg.MetricsNamespace, sources...))))
	r.Route("/cache", admin.New(log, adminCaches...).Routes)

	srv := server.New(r, server.WithAddress(cfg.Address), server.WithLogger(log))
	if err := srv.Start(); err != nil {
		return errors.Join(err, coord.Shutdown(ctx))
	}
	if err := coord.Register("http", lifecycle.PriorityHTTP, srv.Shutdown); err != nil {
		return errors.Join(err, coord.Shutdown(ctx))
	}

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err, ok := <-srv.Errors(); ok {
			log.Error("server failed", slog.String("error", err.Error()))
			cancel()
		}
	}()

	return coord.Wait(waitCtx)
}

// openRedis builds the client shared by every cache and registers it to be
// closed after them. A nil result means the shared tier is off.
//
// With ConnectAttempts > 0 startup waits for Redis to answer. If it never
// does, the lazy client is used anyway and the caches start degraded.
func openRedis(ctx context.Context, cfg Config, log *slog.Logger, coord *lifecycle.Coordinator) goredis.UniversalClient {
	if !cfg.Cache.SharedEnabled {
		log.Info("shared cache disabled, running local tier only")
		return nil
	}

	opts := []redis.Option{
		redis.WithPoolSize(cfg.Redis.PoolSize),
		redis.WithReadTimeout(cfg.Redis.ReadTimeout),
		redis.WithWriteTimeout(cfg.Redis.WriteTimeout),
		redis.WithRetry(cfg.Redis.ConnectAttempts, cfg.Redis.ConnectInterval),
	}

	var (
		client goredis.UniversalClient
		err    error
	)
	if cfg.Redis.ConnectAttempts > 0 {
		client, err = redis.Open(ctx, cfg.Cache.SharedURL, opts...)
		if errors.Is(err, redis.ErrConnectionFailed) {
			log.Warn("redis unreachable at startup, caches start degraded", slog.String("error", err.Error()))
			client, err = redis.New(cfg.Cache.SharedURL, opts...)
		}
	} else {
		client, err = redis.New(cfg.Cache.SharedURL, opts...)
	}
	if err != nil {
		log.Error("shared cache disabled", slog.String("error", err.Error()))
		return nil
	}

	if err := coord.Register("redis", lifecycle.PriorityConnections, redis.Shutdown(client)); err != nil {
		log.Error("redis client not registered for shutdown", slog.String("error", err.Error()))
	}

	return client
}
