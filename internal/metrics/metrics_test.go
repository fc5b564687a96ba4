package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_IncAndAdd(t *testing.T) {
	r := NewRegistry()

	r.Inc(StoreSetsTotal)
	r.Add(StoreSetsTotal, 2)

	snap := r.Snapshot()
	assert.Equal(t, int64(3), snap[string(StoreSetsTotal)])
}

func TestRegistry_SetOverwritesGauge(t *testing.T) {
	r := NewRegistry()

	r.Set(QueuePending, 4)
	r.Set(QueuePending, 1)

	assert.Equal(t, int64(1), r.Snapshot()[string(QueuePending)])
}

func TestRegistry_ConcurrentUpdates(t *testing.T) {
	r := NewRegistry()
	wg := sync.WaitGroup{}

	workers := 50
	increments := 100

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < increments; j++ {
				r.Inc(QueueProcessedTotal)
			}
		}()
	}

	wg.Wait()

	snap := r.Snapshot()
	assert.Equal(t, int64(workers*increments), snap[string(QueueProcessedTotal)])
}

func TestRegistry_SnapshotIsDeepCopy(t *testing.T) {
	r := NewRegistry()

	r.Inc(StoreGetsTotal)
	snap1 := r.Snapshot()

	snap1[string(StoreGetsTotal)] = 999

	snap2 := r.Snapshot()
	assert.Equal(t, int64(1), snap2[string(StoreGetsTotal)],
		"internal state should not be affected by snapshot mutation")
}

func TestRegistry_Timings(t *testing.T) {
	t.Run("accumulates count, total, min and max", func(t *testing.T) {
		r := NewRegistry()

		r.Observe("fetch", 30*time.Millisecond)
		r.Observe("fetch", 10*time.Millisecond)
		r.Observe("fetch", 20*time.Millisecond)

		timing, ok := r.Timings()["fetch"]
		require.True(t, ok)
		assert.Equal(t, int64(3), timing.Count)
		assert.Equal(t, 60*time.Millisecond, timing.Total)
		assert.Equal(t, 10*time.Millisecond, timing.Min)
		assert.Equal(t, 30*time.Millisecond, timing.Max)
		assert.Equal(t, 20*time.Millisecond, timing.Average())
	})

	t.Run("measure records one sample", func(t *testing.T) {
		r := NewRegistry()

		done := r.Measure("load")
		time.Sleep(2 * time.Millisecond)
		done()

		timing := r.Timings()["load"]
		assert.Equal(t, int64(1), timing.Count)
		assert.GreaterOrEqual(t, timing.Total, 2*time.Millisecond)
	})

	t.Run("reset clears timings only", func(t *testing.T) {
		r := NewRegistry()
		r.Inc(CacheHitsTotal)
		r.Observe("fetch", time.Millisecond)

		r.ResetTimings()

		assert.Empty(t, r.Timings())
		assert.Equal(t, int64(1), r.Snapshot()[string(CacheHitsTotal)])
	})

	t.Run("average of empty timing is zero", func(t *testing.T) {
		assert.Equal(t, time.Duration(0), Timing{}.Average())
	})
}
