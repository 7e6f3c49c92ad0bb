package metrics_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/emrvault/tiercache/pkg/cache"
	"github.com/emrvault/tiercache/pkg/metrics"
)

type stubSource struct {
	name  string
	stats cache.Stats
}

func (s stubSource) Name() string { return s.name }

func (s stubSource) Stats() cache.Stats { return s.stats }

func TestCollector(t *testing.T) {
	t.Parallel()

	src := stubSource{
		name: "medical_records",
		stats: cache.Stats{
			Hits:             4,
			L1Hits:           3,
			L2Hits:           1,
			Misses:           1,
			HitRate:          0.8,
			KeyCount:         2,
			MemoryUsageBytes: 128,
			L2Errors:         5,
			SharedReady:      true,
		},
	}
	c := metrics.NewCollector("tiercache", src)

	expected := `
# HELP tiercache_hits Cache hits by answering tier since the last flush.
# TYPE tiercache_hits gauge
tiercache_hits{cache="medical_records",tier="l1"} 3
tiercache_hits{cache="medical_records",tier="l2"} 1
# HELP tiercache_misses Lookups that missed both tiers since the last flush.
# TYPE tiercache_misses gauge
tiercache_misses{cache="medical_records"} 1
# HELP tiercache_shared_up Whether the shared tier is ready (1) or not (0).
# TYPE tiercache_shared_up gauge
tiercache_shared_up{cache="medical_records"} 1
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"tiercache_hits", "tiercache_misses", "tiercache_shared_up"))

	require.Equal(t, 8, testutil.CollectAndCount(c))
}

func TestCollector_Add(t *testing.T) {
	t.Parallel()

	c := metrics.NewCollector("tiercache")
	require.Zero(t, testutil.CollectAndCount(c))

	c.Add(stubSource{name: "a"})
	c.Add(stubSource{name: "b"})
	require.Equal(t, 2, testutil.CollectAndCount(c, "tiercache_local_keys"))
}

func TestHandler_WithTieredCache(t *testing.T) {
	t.Parallel()

	cfg := cache.DefaultConfig()
	cfg.Namespace = "sessions"
	tc := cache.New(context.Background(), cfg, cache.Raw())
	defer tc.Cleanup(context.Background())

	tc.Set(context.Background(), "s1", "token", time.Minute)
	tc.Get(context.Background(), "s1")
	tc.Get(context.Background(), "s2")

	reg := metrics.NewRegistry(metrics.NewCollector("tiercache", tc))

	rec := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `tiercache_hits{cache="sessions",tier="l1"} 1`)
	require.Contains(t, body, `tiercache_misses{cache="sessions"} 1`)
	require.Contains(t, body, `tiercache_shared_up{cache="sessions"} 0`)
	require.Contains(t, body, "go_goroutines")
}

func TestCollector_FlushResetsCounts(t *testing.T) {
	t.Parallel()

	cfg := cache.DefaultConfig()
	cfg.Namespace = "medical_records"
	tc := cache.New(context.Background(), cfg, cache.Raw())
	defer tc.Cleanup(context.Background())

	ctx := context.Background()
	tc.Set(ctx, "rec-1", "payload", time.Minute)
	tc.Get(ctx, "rec-1")
	tc.Get(ctx, "rec-2")

	c := metrics.NewCollector("tiercache", tc)

	before := `
# HELP tiercache_misses Lookups that missed both tiers since the last flush.
# TYPE tiercache_misses gauge
tiercache_misses{cache="medical_records"} 1
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(before), "tiercache_misses"))

	tc.Flush(ctx)

	after := `
# HELP tiercache_misses Lookups that missed both tiers since the last flush.
# TYPE tiercache_misses gauge
tiercache_misses{cache="medical_records"} 0
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(after), "tiercache_misses"))
}
