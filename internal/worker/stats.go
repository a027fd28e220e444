package worker

import (
	"context"
	"time"

	"github.com/pratik-mahalle/infrasec/internal/domain/rule"
	"github.com/pratik-mahalle/infrasec/internal/pkg/logger"
	"github.com/pratik-mahalle/infrasec/internal/pkg/metrics"
)

// StatsRefresher periodically publishes rule set statistics as Prometheus
// gauges
type StatsRefresher struct {
	rules    rule.Service
	interval time.Duration
	logger   *logger.Logger
}

// NewStatsRefresher creates a new stats refresher worker
func NewStatsRefresher(rules rule.Service, interval time.Duration, log *logger.Logger) *StatsRefresher {
	return &StatsRefresher{
		rules:    rules,
		interval: interval,
		logger:   log.WithComponent("stats-refresher"),
	}
}

// Start begins the periodic refresh loop. It blocks until ctx is cancelled.
func (s *StatsRefresher) Start(ctx context.Context) {
	s.logger.Info("Starting stats refresher worker")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.refresh(ctx)

	for {
		select {
		case <-ticker.C:
			s.refresh(ctx)
		case <-ctx.Done():
			s.logger.Info("Stats refresher worker stopped")
			return
		}
	}
}

func (s *StatsRefresher) refresh(ctx context.Context) {
	stats, err := s.rules.Stats(ctx)
	if err != nil {
		s.logger.ErrorWithErr(err, "Failed to refresh rule stats")
		return
	}

	for status, count := range stats.RulesByStatus {
		metrics.SetRulesByStatus(string(status), float64(count))
	}
	metrics.SetOpenConflicts(float64(stats.OpenConflicts))
}
