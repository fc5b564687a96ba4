package ttl

import (
	"context"
	"strconv"
	"time"

	"habit-sync/internal/logs"
	"habit-sync/internal/metrics"
)

// Store defines the minimal contract required by the sweeper.
// *store.KV satisfies it.
type Store interface {
	RemoveExpired() int
}

// Sweeper periodically deletes expired entries so they stop occupying
// storage even when nobody reads them again. Expiry is still enforced on
// read without it.
type Sweeper struct {
	store    Store
	interval time.Duration
	logger   *logs.Logger
	metrics  *metrics.Registry
}

// NewSweeper creates a new instance of Sweeper.
func NewSweeper(
	store Store,
	interval time.Duration,
	logger *logs.Logger,
	metricsRegistry *metrics.Registry,
) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger.With("ttl"),
		metrics:  metricsRegistry,
	}
}

// Start runs the sweep loop until the context is cancelled.
// It blocks and should typically be run in a separate goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce()
		case <-ctx.Done():
			s.logger.Debug("sweeper stopped")
			return
		}
	}
}

// RunOnce performs a single sweep and returns how many entries it removed.
func (s *Sweeper) RunOnce() int {
	s.metrics.Inc(metrics.SweepRunsTotal)

	removed := s.store.RemoveExpired()
	if removed > 0 {
		s.metrics.Add(metrics.SweepKeysRemovedTotal, int64(removed))
		s.logger.Info("removed " + strconv.Itoa(removed) + " expired keys")
	}
	return removed
}
