package store

import (
	"errors"
	"fmt"
)

// ErrQuotaExceeded is returned by a backend that has run out of space.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// StorageError reports a failed read or write against the persistent backend.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
