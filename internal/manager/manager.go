package manager

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"habit-sync/internal/cache"
	"habit-sync/internal/logs"
	"habit-sync/internal/metrics"
	"habit-sync/internal/notify"
	"habit-sync/internal/retry"
)

const (
	msgLoadFailed     = "Failed to load data. Please try again."
	msgUpdateReverted = "Update failed. Your change was reverted."
	msgBatchFailed    = "Batch update failed. Changes were reverted."
	msgBatchDone      = "All changes saved."
)

// Options configures one Manager.
type Options[T any] struct {
	// Name identifies the resource in logs and duration metrics.
	Name string

	// Fetch loads the resource from the remote backend. Required.
	Fetch func(ctx context.Context) (T, error)

	// CacheKey enables cache read-through and write-through when non-empty.
	CacheKey string
	CacheTTL time.Duration

	// OnError replaces the default failure notification for Load.
	OnError func(error)

	// Clone returns the copy optimistic updates are applied to. The default
	// is a plain value copy, which shares maps and slices with the original;
	// reference-typed data should supply its own.
	Clone func(T) T

	Retry retry.Options

	AutoRefresh     bool
	RefreshInterval time.Duration
}

// Deps are the collaborators a Manager uses. Every field is optional except
// Logger and Metrics.
type Deps struct {
	Cache    *cache.Cache
	Online   OnlineChecker
	Notifier notify.Notifier
	Logger   *logs.Logger
	Metrics  *metrics.Registry
}

// Manager owns the state of one remote resource: it serves it from cache,
// fetches it with retries, and applies optimistic updates with rollback.
//
// Overlapping Load calls share a single in-flight fetch. Update callbacks
// and Clone run without the state lock held, so they may read State or
// Data, but must not start another OptimisticUpdate or BatchUpdate.
type Manager[T any] struct {
	mu        sync.RWMutex
	writeMu   sync.Mutex // serializes optimistic and batch mutations
	state     State[T]
	listeners map[int]func(State[T])
	nextID    int

	opts     Options[T]
	cache    *cache.Cache
	online   OnlineChecker
	notifier notify.Notifier
	logger   *logs.Logger
	metrics  *metrics.Registry

	inflight singleflight.Group
	now      func() time.Time
}

// New creates a Manager.
func New[T any](opts Options[T], deps Deps) (*Manager[T], error) {
	if opts.Fetch == nil {
		return nil, errors.New("manager: fetch function is required")
	}
	if opts.Name == "" {
		opts.Name = "resource"
		if opts.CacheKey != "" {
			opts.Name = opts.CacheKey
		}
	}
	if opts.Clone == nil {
		opts.Clone = func(v T) T { return v }
	}
	if deps.Online == nil {
		deps.Online = alwaysOnline{}
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}

	return &Manager[T]{
		listeners: make(map[int]func(State[T])),
		opts:      opts,
		cache:     deps.Cache,
		online:    deps.Online,
		notifier:  deps.Notifier,
		logger:    deps.Logger.With("manager." + opts.Name),
		metrics:   deps.Metrics,
		now:       time.Now,
	}, nil
}

// State returns a snapshot of the current state.
func (m *Manager[T]) State() State[T] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Data returns the current data, or ErrNoData before the first load.
func (m *Manager[T]) Data() (T, error) {
	s := m.State()
	if !s.HasData {
		var zero T
		return zero, ErrNoData
	}
	return s.Data, nil
}

// Subscribe registers fn for every published state and returns a func that
// removes it. fn runs synchronously on the goroutine that changed the state.
func (m *Manager[T]) Subscribe(fn func(State[T])) func() {
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

// Load serves the resource from cache unless force is set or the cache
// misses, in which case it fetches through the retry executor and writes the
// result back to the cache. Failures are recorded in State().Err, reported
// to OnError or the notifier, and returned.
func (m *Manager[T]) Load(ctx context.Context, force bool) error {
	if !force && m.cacheEnabled() {
		var data T
		ok, err := m.cache.Get(m.opts.CacheKey, &data)
		if err != nil {
			m.logger.WarnErr("cache read failed, fetching", err, nil)
		} else if ok {
			m.update(func(s *State[T]) {
				s.Data = data
				s.HasData = true
				s.Loading = false
			})
			return nil
		}
	}

	_, err, _ := m.inflight.Do("load", func() (any, error) {
		return nil, m.fetch(ctx)
	})
	return err
}

// Refresh forces a fetch, bypassing the cache.
func (m *Manager[T]) Refresh(ctx context.Context) error {
	return m.Load(ctx, true)
}

func (m *Manager[T]) fetch(ctx context.Context) error {
	m.metrics.Inc(metrics.ManagerLoadsTotal)
	m.update(func(s *State[T]) {
		s.Loading = true
		s.Err = nil
	})

	data, err := retry.Do(ctx, m.retryOptions("fetch"), m.opts.Fetch)
	if err != nil {
		m.update(func(s *State[T]) {
			s.Err = err
			s.Loading = false
		})
		m.metrics.Inc(metrics.ManagerFailuresTotal)
		m.logger.ErrorErr("load failed", err, map[string]string{"resource": m.opts.Name})
		if m.opts.OnError != nil {
			m.opts.OnError(err)
		} else {
			m.notifier.Error(msgLoadFailed)
		}
		return err
	}

	now := m.now()
	m.update(func(s *State[T]) {
		s.Data = data
		s.HasData = true
		s.LastUpdated = now
		s.Loading = false
	})
	m.writeThrough(data)
	return nil
}

// OptimisticUpdate publishes fn applied to a copy of the current data right
// away, without any network call. The returned rollback restores the data
// as it was before fn and emits a failure notification; calling it more
// than once has no further effect.
func (m *Manager[T]) OptimisticUpdate(fn func(T) T) (rollback func()) {
	m.writeMu.Lock()
	cur := m.State()
	prev, prevHas := cur.Data, cur.HasData
	next := fn(m.opts.Clone(prev))

	m.mu.Lock()
	m.state.Data = next
	m.state.HasData = true
	snap, listeners := m.state, m.listenersLocked()
	m.mu.Unlock()
	m.writeMu.Unlock()
	publish(snap, listeners)

	var once sync.Once
	return func() {
		once.Do(func() {
			m.update(func(s *State[T]) {
				s.Data = prev
				s.HasData = prevHas
			})
			m.metrics.Inc(metrics.ManagerRollbacksTotal)
			m.logger.Warn("optimistic update rolled back")
			m.notifier.Error(msgUpdateReverted)
		})
	}
}

// BatchUpdate applies apply for every item to a copy of m's data and
// publishes the result immediately, then commits the items remotely through
// the retry executor. On success the updated data is written to the cache;
// on failure the pre-batch data is restored and the error is returned.
//
// It is a function rather than a method because Go methods cannot
// introduce the item type parameter.
func BatchUpdate[T, I any](
	ctx context.Context,
	m *Manager[T],
	items []I,
	apply func(T, I) T,
	commit func(ctx context.Context, items []I) error,
) error {
	m.writeMu.Lock()
	cur := m.State()
	prev, prevHas := cur.Data, cur.HasData
	next := m.opts.Clone(prev)
	for _, item := range items {
		next = apply(next, item)
	}

	m.mu.Lock()
	m.state.Data = next
	m.state.HasData = true
	m.state.Loading = true
	snap, listeners := m.state, m.listenersLocked()
	m.mu.Unlock()
	m.writeMu.Unlock()
	publish(snap, listeners)

	err := retry.Run(ctx, m.retryOptions("batch"), func(ctx context.Context) error {
		return commit(ctx, items)
	})
	if err != nil {
		m.update(func(s *State[T]) {
			s.Data = prev
			s.HasData = prevHas
			s.Loading = false
			s.Err = err
		})
		m.metrics.Inc(metrics.ManagerRollbacksTotal)
		m.logger.ErrorErr("batch update failed", err, map[string]string{"resource": m.opts.Name})
		m.notifier.Error(msgBatchFailed)
		return err
	}

	now := m.now()
	m.update(func(s *State[T]) {
		s.Loading = false
		s.LastUpdated = now
	})
	m.writeThrough(next)
	m.notifier.Success(msgBatchDone)
	return nil
}

// Run refreshes the resource every RefreshInterval while AutoRefresh is
// enabled, skipping ticks that find the client offline. It blocks until ctx
// is cancelled and returns immediately when auto refresh is off.
func (m *Manager[T]) Run(ctx context.Context) {
	if !m.opts.AutoRefresh || m.opts.RefreshInterval <= 0 {
		return
	}

	ticker := time.NewTicker(m.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !m.online.IsOnline() {
				m.logger.Debug("offline, skipping refresh")
				continue
			}
			_ = m.Refresh(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager[T]) cacheEnabled() bool {
	return m.cache != nil && m.opts.CacheKey != ""
}

func (m *Manager[T]) writeThrough(data T) {
	if !m.cacheEnabled() {
		return
	}
	if err := m.cache.Set(m.opts.CacheKey, data, m.opts.CacheTTL); err != nil {
		m.logger.WarnErr("cache write failed", err, map[string]string{"key": m.opts.CacheKey})
	}
}

func (m *Manager[T]) retryOptions(op string) retry.Options {
	opts := m.opts.Retry
	opts.Name = m.opts.Name + "." + op
	opts.Metrics = m.metrics
	return opts
}

func (m *Manager[T]) update(fn func(*State[T])) {
	m.mu.Lock()
	fn(&m.state)
	snap, listeners := m.state, m.listenersLocked()
	m.mu.Unlock()
	publish(snap, listeners)
}

// listenersLocked must be called with m.mu held.
func (m *Manager[T]) listenersLocked() []func(State[T]) {
	if len(m.listeners) == 0 {
		return nil
	}
	out := make([]func(State[T]), 0, len(m.listeners))
	for _, fn := range m.listeners {
		out = append(out, fn)
	}
	return out
}

func publish[T any](s State[T], listeners []func(State[T])) {
	for _, fn := range listeners {
		fn(s)
	}
}
