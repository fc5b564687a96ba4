package metrics

import (
	"sync/atomic"
	"time"
)

// Timing accumulates duration samples for one operation name.
type Timing struct {
	Count int64         `json:"count"`
	Total time.Duration `json:"total_duration"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
}

// Average returns Total/Count, or zero when nothing was recorded.
func (t Timing) Average() time.Duration {
	if t.Count == 0 {
		return 0
	}
	return t.Total / time.Duration(t.Count)
}

// Snapshot returns a deep copy of all counters.
// Safe for concurrent use and immune to external mutation.
func (r *Registry) Snapshot() map[string]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]int64, len(r.counters))
	for key, ptr := range r.counters {
		out[string(key)] = atomic.LoadInt64(ptr)
	}
	return out
}

// Timings returns a copy of all duration metrics keyed by operation name.
func (r *Registry) Timings() map[string]Timing {
	r.tmu.Lock()
	defer r.tmu.Unlock()

	out := make(map[string]Timing, len(r.timings))
	for name, t := range r.timings {
		out[name] = *t
	}
	return out
}
