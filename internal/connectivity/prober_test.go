package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"habit-sync/internal/logs"
	"habit-sync/internal/metrics"

	"github.com/stretchr/testify/assert"
)

func newTestProber(t *testing.T, initial bool, cfg ProbeConfig) (*Prober, *Monitor, *metrics.Registry) {
	t.Helper()
	reg := metrics.NewRegistry()
	logger := logs.NewLogger(50, logs.DEBUG)
	m := NewMonitor(initial, nil, logger, reg)
	return NewProber(m, cfg, logger, reg), m, reg
}

func TestDefaultProbeConfig(t *testing.T) {
	cfg := DefaultProbeConfig()

	assert.Equal(t, 5*time.Second, cfg.Interval)
	assert.Equal(t, 2, cfg.FailureThreshold)
	assert.Equal(t, 1, cfg.SuccessThreshold)
}

func TestProber_RunOnce_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p, m, _ := newTestProber(t, false, ProbeConfig{URL: server.URL + "/health"})

	p.runOnce(context.Background())

	assert.True(t, m.IsOnline())
}

func TestProber_RunOnce_FailureThreshold(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	p, m, reg := newTestProber(t, true, ProbeConfig{URL: server.URL, FailureThreshold: 2})

	p.runOnce(context.Background())
	assert.True(t, m.IsOnline(), "one failure is below the threshold")

	p.runOnce(context.Background())
	assert.False(t, m.IsOnline())

	assert.Equal(t, int64(2), reg.Snapshot()[string(metrics.ProbeFailuresTotal)])
}

func TestProber_ClientErrorStillMeansReachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	p, m, _ := newTestProber(t, false, ProbeConfig{URL: server.URL})

	p.runOnce(context.Background())
	assert.True(t, m.IsOnline())
}

func TestProber_RunOnce_NetworkError(t *testing.T) {
	p, m, _ := newTestProber(t, true, ProbeConfig{URL: "http://127.0.0.1:0", FailureThreshold: 1})

	p.runOnce(context.Background())

	assert.False(t, m.IsOnline())
}

func TestProber_RequestCreationError(t *testing.T) {
	p, m, reg := newTestProber(t, true, ProbeConfig{URL: "http://\n", FailureThreshold: 1})

	p.runOnce(context.Background())

	assert.False(t, m.IsOnline())
	assert.Equal(t, int64(1), reg.Snapshot()[string(metrics.ProbeFailuresTotal)])
}

func TestProber_SuccessResetsFailures(t *testing.T) {
	var healthy atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if healthy.Load() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p, m, _ := newTestProber(t, true, ProbeConfig{URL: server.URL, FailureThreshold: 2})

	p.runOnce(context.Background())
	healthy.Store(true)
	p.runOnce(context.Background())
	healthy.Store(false)
	p.runOnce(context.Background())

	assert.True(t, m.IsOnline(), "failures must be consecutive")
}

func TestProber_Start_ExecutesRunOnce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p, m, _ := newTestProber(t, true, ProbeConfig{
		URL:              server.URL,
		Interval:         5 * time.Millisecond,
		FailureThreshold: 1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go p.Start(ctx)

	assert.Eventually(t, func() bool {
		return !m.IsOnline()
	}, time.Second, 5*time.Millisecond)
}

func TestProber_ContextCancellation(t *testing.T) {
	p, _, _ := newTestProber(t, true, ProbeConfig{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NotPanics(t, func() {
		p.Start(ctx)
	})
}
