package connectivity

import (
	"context"
	"strconv"
	"sync"

	"habit-sync/internal/logs"
	"habit-sync/internal/metrics"
	"habit-sync/internal/notify"
)

// Replayer is the part of the action queue the monitor drives.
type Replayer interface {
	Load() error
	Process(ctx context.Context) (int, error)
}

// Monitor tracks network reachability and replays the action queue when
// connectivity returns.
type Monitor struct {
	mu        sync.RWMutex
	online    bool
	listeners map[int]func(bool)
	nextID    int
	replayer  Replayer
	ctx       context.Context

	notifier notify.Notifier
	logger   *logs.Logger
	metrics  *metrics.Registry
}

// NewMonitor creates a monitor whose initial state comes from the platform
// reachability signal.
func NewMonitor(
	initial bool,
	notifier notify.Notifier,
	logger *logs.Logger,
	metricsRegistry *metrics.Registry,
) *Monitor {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Monitor{
		online:    initial,
		listeners: make(map[int]func(bool)),
		ctx:       context.Background(),
		notifier:  notifier,
		logger:    logger.With("connectivity"),
		metrics:   metricsRegistry,
	}
}

// SetReplayer attaches the queue replayed on reconnect.
func (m *Monitor) SetReplayer(r Replayer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replayer = r
}

// Start restores the persisted queue and, when online, replays it before
// returning. ctx bounds every later replay triggered by SetOnline.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	m.ctx = ctx
	r := m.replayer
	online := m.online
	m.mu.Unlock()

	if r == nil {
		return nil
	}
	if err := r.Load(); err != nil {
		m.logger.ErrorErr("load persisted queue", err, nil)
		return err
	}
	if online {
		m.replay(ctx, r)
	}
	return nil
}

// IsOnline reports the current connectivity state.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// SetOnline applies a platform online/offline event. Repeating the current
// state is ignored. Going online notifies success and replays the queue in
// the background; going offline emits a warning.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	listeners := make([]func(bool), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	r := m.replayer
	ctx := m.ctx
	m.mu.Unlock()

	if online {
		m.metrics.Inc(metrics.ConnectivityOnlineTotal)
		m.logger.Info("connection restored")
		m.notifier.Success("Back online. Syncing pending changes.")
		if r != nil {
			go m.replay(ctx, r)
		}
	} else {
		m.metrics.Inc(metrics.ConnectivityOfflineTotal)
		m.logger.Warn("connection lost")
		m.notifier.Warning("You are offline. Changes will be synced when the connection returns.")
	}

	for _, fn := range listeners {
		fn(online)
	}
}

// Subscribe registers fn for every state transition and returns a func
// that removes it.
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.listeners[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

func (m *Monitor) replay(ctx context.Context, r Replayer) {
	n, err := r.Process(ctx)
	if err != nil {
		m.logger.WarnErr("queue replay stopped", err, nil)
		return
	}
	if n > 0 {
		m.logger.Info("replayed " + strconv.Itoa(n) + " queued action(s)")
	}
}
