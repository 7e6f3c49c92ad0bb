package cache

import "sync/atomic"

// Stats is a point-in-time snapshot of a facade's counters.
type Stats struct {
	Hits             int64   `json:"hits"`
	Misses           int64   `json:"misses"`
	HitRate          float64 `json:"hit_rate"`
	KeyCount         int     `json:"key_count"`
	MemoryUsageBytes int64   `json:"memory_usage_bytes"`

	// L1Hits and L2Hits split Hits by the tier that answered.
	L1Hits int64 `json:"l1_hits"`
	L2Hits int64 `json:"l2_hits"`
	// L2Errors counts shared writes that failed while the shared tier was ready.
	L2Errors int64 `json:"l2_errors"`

	SharedReady bool   `json:"shared_ready"`
	SharedState string `json:"shared_state"`
}

type counters struct {
	l1Hits   atomic.Int64
	l2Hits   atomic.Int64
	misses   atomic.Int64
	l2Errors atomic.Int64
}

func (c *counters) reset() {
	c.l1Hits.Store(0)
	c.l2Hits.Store(0)
	c.misses.Store(0)
	c.l2Errors.Store(0)
}

func (c *counters) snapshot() Stats {
	s := Stats{
		L1Hits:   c.l1Hits.Load(),
		L2Hits:   c.l2Hits.Load(),
		Misses:   c.misses.Load(),
		L2Errors: c.l2Errors.Load(),
	}
	s.Hits = s.L1Hits + s.L2Hits
	s.HitRate = hitRate(s.Hits, s.Misses)
	return s
}

func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
