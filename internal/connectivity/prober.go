package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"habit-sync/internal/logs"
	"habit-sync/internal/metrics"
)

// ProbeConfig controls the reachability prober.
type ProbeConfig struct {
	URL              string
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold int // consecutive failures before going offline
	SuccessThreshold int // consecutive successes before going online again
}

func DefaultProbeConfig() ProbeConfig {
	return ProbeConfig{
		Interval:         5 * time.Second,
		Timeout:          2 * time.Second,
		FailureThreshold: 2,
		SuccessThreshold: 1,
	}
}

// Prober periodically checks the backend and feeds the result into a Monitor.
type Prober struct {
	monitor *Monitor
	client  *http.Client
	config  ProbeConfig
	logger  *logs.Logger
	metrics *metrics.Registry

	mu        sync.Mutex
	failures  int
	successes int
}

// NewProber creates a new prober
func NewProber(
	monitor *Monitor,
	cfg ProbeConfig,
	logger *logs.Logger,
	metricsRegistry *metrics.Registry,
) *Prober {
	def := DefaultProbeConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	return &Prober{
		monitor: monitor,
		client:  &http.Client{Timeout: cfg.Timeout},
		config:  cfg,
		logger:  logger.With("prober"),
		metrics: metricsRegistry,
	}
}

// Start begins the probe loop
// Stops immediately when the ctx is cancelled
func (p *Prober) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.runOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Prober) runOnce(ctx context.Context) {
	if p.check(ctx) {
		p.markSuccess()
	} else {
		p.metrics.Inc(metrics.ProbeFailuresTotal)
		p.markFailure()
	}
}

func (p *Prober) check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.URL, nil)
	if err != nil {
		p.logger.Error("build probe request: " + err.Error())
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("probe failed: " + err.Error())
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 500
}

func (p *Prober) markFailure() {
	p.mu.Lock()
	p.failures++
	p.successes = 0
	trip := p.failures >= p.config.FailureThreshold
	p.mu.Unlock()

	if trip {
		p.monitor.SetOnline(false)
	}
}

func (p *Prober) markSuccess() {
	p.mu.Lock()
	p.successes++
	p.failures = 0
	restore := p.successes >= p.config.SuccessThreshold
	p.mu.Unlock()

	if restore {
		p.monitor.SetOnline(true)
	}
}
