package manager

import (
	"errors"
	"time"
)

// ErrNoData is returned by Data before anything has been loaded.
var ErrNoData = errors.New("no data loaded")

// State is the caller-visible view of one managed resource.
type State[T any] struct {
	Data        T
	HasData     bool
	Loading     bool
	Err         error
	LastUpdated time.Time
}

// OnlineChecker reports current connectivity. *connectivity.Monitor
// satisfies it.
type OnlineChecker interface {
	IsOnline() bool
}

type alwaysOnline struct{}

func (alwaysOnline) IsOnline() bool { return true }
