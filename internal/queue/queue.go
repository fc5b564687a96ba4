package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"habit-sync/internal/logs"
	"habit-sync/internal/metrics"
	"habit-sync/internal/store"
)

// Queue is a durable FIFO of deferred remote writes.
//
// Processing is strictly ordered with head-of-line blocking: the head is
// removed only after its handler succeeds, and a failing head stops the run
// leaving itself and everything behind it queued.
type Queue struct {
	mu       sync.Mutex
	actions  []Action
	handlers map[string]Handler

	processing atomic.Bool

	kv      *store.KV
	online  func() bool
	logger  *logs.Logger
	metrics *metrics.Registry
	now     func() time.Time
}

// New creates an empty queue persisted in kv. online reports current
// connectivity; Enqueue only kicks off processing when it returns true.
func New(
	kv *store.KV,
	online func() bool,
	logger *logs.Logger,
	metricsRegistry *metrics.Registry,
) *Queue {
	if online == nil {
		online = func() bool { return true }
	}
	return &Queue{
		handlers: make(map[string]Handler),
		kv:       kv,
		online:   online,
		logger:   logger.With("queue"),
		metrics:  metricsRegistry,
		now:      time.Now,
	}
}

// Register installs the handler used to execute actions of kind.
func (q *Queue) Register(kind string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[kind] = h
}

// Enqueue appends an action to the tail and persists the queue.
//
// The action stays queued in memory even if persisting fails; the storage
// error is returned so the caller can surface it. When online, processing is
// started in the background.
func (q *Queue) Enqueue(ctx context.Context, kind string, payload any) (Action, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Action{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}

	action := Action{
		ID:        uuid.NewString(),
		Kind:      kind,
		Payload:   raw,
		Timestamp: q.now().UnixMilli(),
	}

	q.mu.Lock()
	q.actions = append(q.actions, action)
	perr := q.persistLocked()
	q.mu.Unlock()

	q.metrics.Inc(metrics.QueueEnqueuedTotal)
	q.logger.Debug("enqueued " + kind + " " + action.ID)

	if q.online() {
		go q.Process(context.WithoutCancel(ctx))
	}
	return action, perr
}

// Process replays queued actions in order until the queue is empty or an
// action fails. Concurrent calls while a run is in flight are no-ops and
// report zero processed actions.
func (q *Queue) Process(ctx context.Context) (int, error) {
	if !q.processing.CompareAndSwap(false, true) {
		return 0, nil
	}
	// The flag is dropped under q.mu together with the empty check, so an
	// Enqueue that lands after this run gives up always finds it clear.
	released := false
	defer func() {
		if !released {
			q.processing.Store(false)
		}
	}()

	processed := 0
	for {
		q.mu.Lock()
		if len(q.actions) == 0 {
			q.processing.Store(false)
			released = true
			q.mu.Unlock()
			return processed, nil
		}
		head := q.actions[0]
		handler, ok := q.handlers[head.Kind]
		q.mu.Unlock()

		var err error
		if !ok {
			err = fmt.Errorf("%w: %s", ErrUnknownKind, head.Kind)
		} else {
			err = handler(ctx, head.Payload)
		}

		if err != nil {
			q.metrics.Inc(metrics.QueueFailuresTotal)
			q.logger.ErrorErr("action failed, queue halted", err, map[string]string{
				"id":   head.ID,
				"kind": head.Kind,
			})
			return processed, fmt.Errorf("process %s %s: %w", head.Kind, head.ID, err)
		}

		q.mu.Lock()
		if len(q.actions) > 0 && q.actions[0].ID == head.ID {
			q.actions = q.actions[1:]
		}
		if perr := q.persistLocked(); perr != nil {
			q.logger.ErrorErr("persist queue", perr, nil)
		}
		q.mu.Unlock()

		processed++
		q.metrics.Inc(metrics.QueueProcessedTotal)
	}
}

// Processing reports whether a replay run is currently in flight.
func (q *Queue) Processing() bool {
	return q.processing.Load()
}

// Load restores the persisted queue. Actions already in memory and not in
// the persisted copy are kept behind the restored ones.
func (q *Queue) Load() error {
	var saved []Action
	ok, err := q.kv.Get(StorageKey, &saved)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	seen := make(map[string]struct{}, len(saved))
	for _, a := range saved {
		seen[a.ID] = struct{}{}
	}
	merged := saved
	for _, a := range q.actions {
		if _, dup := seen[a.ID]; !dup {
			merged = append(merged, a)
		}
	}
	q.actions = merged
	q.metrics.Set(metrics.QueuePending, int64(len(q.actions)))
	q.logger.Info("restored " + strconv.Itoa(len(saved)) + " queued action(s)")
	return nil
}

// Pending returns a copy of the queued actions, head first.
func (q *Queue) Pending() []Action {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Action, len(q.actions))
	copy(out, q.actions)
	return out
}

// Len returns the number of queued actions.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.actions)
}

// Remove drops the action with id, e.g. to unblock a poison head.
func (q *Queue) Remove(id string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, a := range q.actions {
		if a.ID != id {
			continue
		}
		q.actions = append(q.actions[:i:i], q.actions[i+1:]...)
		q.logger.Warn("removed queued action " + a.Kind + " " + id)
		return true, q.persistLocked()
	}
	return false, nil
}

// persistLocked must be called with q.mu held.
func (q *Queue) persistLocked() error {
	q.metrics.Set(metrics.QueuePending, int64(len(q.actions)))
	if q.actions == nil {
		return q.kv.Set(StorageKey, []Action{}, 0)
	}
	return q.kv.Set(StorageKey, q.actions, 0)
}
