// Package reporter logs cache statistics on a cron schedule.
package reporter

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/emrvault/tiercache/pkg/logger"
	"github.com/emrvault/tiercache/pkg/metrics"
)

// Reporter periodically logs every source's Stats at info level.
type Reporter struct {
	cron    *cron.Cron
	logger  *slog.Logger
	sources []metrics.Source
}

// New parses schedule (five-field cron or a descriptor such as
// "@every 1m") and prepares a reporter. Call Start to begin.
func New(schedule string, log *slog.Logger, sources ...metrics.Source) (*Reporter, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

	r := &Reporter{
		cron:    cron.New(cron.WithParser(parser)),
		logger:  logger.Component(log, "reporter"),
		sources: sources,
	}

	if _, err := r.cron.AddFunc(schedule, r.Report); err != nil {
		return nil, err
	}

	return r, nil
}

// Start runs the schedule in the background.
func (r *Reporter) Start() {
	r.cron.Start()
}

// Report logs the current statistics once.
func (r *Reporter) Report() {
	for _, src := range r.sources {
		s := src.Stats()
		r.logger.Info("cache stats",
			slog.String("cache", src.Name()),
			slog.Int64("hits", s.Hits),
			slog.Int64("misses", s.Misses),
			slog.Float64("hit_rate", s.HitRate),
			slog.Int("keys", s.KeyCount),
			slog.Int64("memory_bytes", s.MemoryUsageBytes),
			slog.String("shared_state", s.SharedState),
		)
	}
}

// Shutdown stops the schedule and waits for a running report, bounded by ctx.
func (r *Reporter) Shutdown(ctx context.Context) error {
	select {
	case <-r.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
