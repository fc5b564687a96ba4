package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// StorageKey is the backend key holding the persisted queue.
const StorageKey = "offline_queue"

// ErrUnknownKind is returned when no handler is registered for an action's kind.
var ErrUnknownKind = errors.New("no handler registered for action kind")

// Action is one deferred remote write.
//
// Actions are persisted as JSON, so the operation itself is referenced by
// Kind and resolved against the registered handlers at replay time.
type Action struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Handler performs the remote write for one action kind.
type Handler func(ctx context.Context, payload json.RawMessage) error

// BatchAction is one step of an all-or-nothing SyncBatch.
type BatchAction struct {
	Name     string
	Execute  func(ctx context.Context) error
	Rollback func(ctx context.Context) error // optional
}

// BatchError reports a failed SyncBatch: which step failed and any rollback
// errors encountered while undoing the steps before it.
type BatchError struct {
	Index        int
	Name         string
	Err          error
	RollbackErrs []error
}

func (e *BatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "batch sync failed at step %d", e.Index)
	if e.Name != "" {
		fmt.Fprintf(&b, " (%s)", e.Name)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	if n := len(e.RollbackErrs); n > 0 {
		fmt.Fprintf(&b, "; %d rollback(s) failed", n)
	}
	return b.String()
}

func (e *BatchError) Unwrap() error { return e.Err }
