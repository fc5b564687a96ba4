package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricKey is a strongly typed metric identifier.
type MetricKey string

// Metric keys (centralized)
const (
	// Store
	StoreSetsTotal    MetricKey = "store_sets_total"
	StoreGetsTotal    MetricKey = "store_gets_total"
	StoreExpiredTotal MetricKey = "store_expired_total"
	StoreErrorsTotal  MetricKey = "store_errors_total"

	// Cache
	CacheHitsTotal   MetricKey = "cache_hits_total"
	CacheMissesTotal MetricKey = "cache_misses_total"

	// Retry
	RetryAttemptsTotal  MetricKey = "retry_attempts_total"
	RetryExhaustedTotal MetricKey = "retry_exhausted_total"
	RetryAbortedTotal   MetricKey = "retry_aborted_total" // stopped early on a non-transient error

	// Action queue
	QueueEnqueuedTotal  MetricKey = "queue_enqueued_total"
	QueueProcessedTotal MetricKey = "queue_processed_total"
	QueueFailuresTotal  MetricKey = "queue_failures_total"
	QueuePending        MetricKey = "queue_pending"
	BatchRollbacksTotal MetricKey = "batch_rollbacks_total"

	// Connectivity
	ConnectivityOnlineTotal  MetricKey = "connectivity_online_total"
	ConnectivityOfflineTotal MetricKey = "connectivity_offline_total"
	ProbeFailuresTotal       MetricKey = "probe_failures_total"

	// Data manager
	ManagerLoadsTotal     MetricKey = "manager_loads_total"
	ManagerFailuresTotal  MetricKey = "manager_failures_total"
	ManagerRollbacksTotal MetricKey = "manager_rollbacks_total"

	// TTL sweep
	SweepRunsTotal        MetricKey = "sweep_runs_total"
	SweepKeysRemovedTotal MetricKey = "sweep_keys_removed_total"
)

// Registry stores all metrics.
type Registry struct {
	mu       sync.RWMutex
	counters map[MetricKey]*int64

	tmu     sync.Mutex
	timings map[string]*Timing
}

// NewRegistry creates a metrics registry.
func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[MetricKey]*int64),
		timings:  make(map[string]*Timing),
	}
}

// Inc increments a metric by 1.
func (r *Registry) Inc(key MetricKey) {
	r.Add(key, 1)
}

// Add increments a metric by delta.
func (r *Registry) Add(key MetricKey, delta int64) {
	atomic.AddInt64(r.counter(key), delta)
}

// Set overwrites a gauge-style metric.
func (r *Registry) Set(key MetricKey, value int64) {
	atomic.StoreInt64(r.counter(key), value)
}

func (r *Registry) counter(key MetricKey) *int64 {
	r.mu.RLock()
	ptr, ok := r.counters[key]
	r.mu.RUnlock()

	if ok {
		return ptr
	}

	// Slow path: metric not yet initialized
	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if ptr, ok = r.counters[key]; ok {
		return ptr
	}

	var val int64
	r.counters[key] = &val
	return &val
}

// Measure starts a named duration measurement. The returned func records the
// elapsed time when called; call it exactly once, typically deferred.
func (r *Registry) Measure(name string) func() {
	start := time.Now()
	return func() {
		r.Observe(name, time.Since(start))
	}
}

// Observe records one duration sample for name.
func (r *Registry) Observe(name string, d time.Duration) {
	r.tmu.Lock()
	defer r.tmu.Unlock()

	t, ok := r.timings[name]
	if !ok {
		r.timings[name] = &Timing{Count: 1, Total: d, Min: d, Max: d}
		return
	}
	t.Count++
	t.Total += d
	if d < t.Min {
		t.Min = d
	}
	if d > t.Max {
		t.Max = d
	}
}

// ResetTimings drops all accumulated duration metrics.
func (r *Registry) ResetTimings() {
	r.tmu.Lock()
	defer r.tmu.Unlock()
	r.timings = make(map[string]*Timing)
}
