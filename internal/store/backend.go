package store

import (
	"sort"
	"sync"
)

// Backend is the platform key-value medium. Values are opaque strings;
// KV stores JSON documents in them.
type Backend interface {
	GetItem(key string) (string, bool, error)
	SetItem(key, value string) error
	RemoveItem(key string) error
	Clear() error
	Keys() ([]string, error)
}

// MemoryBackend is a concurrency-safe in-memory Backend.
//
// When Quota is positive, writes that would grow the total stored bytes past
// it fail with ErrQuotaExceeded.
type MemoryBackend struct {
	mu    sync.RWMutex
	data  map[string]string
	size  int
	Quota int
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string]string)}
}

func (m *MemoryBackend) GetItem(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryBackend) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.size - len(m.data[key]) + len(value)
	if m.Quota > 0 && next > m.Quota {
		return ErrQuotaExceeded
	}
	m.data[key] = value
	m.size = next
	return nil
}

func (m *MemoryBackend) RemoveItem(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.data[key]; ok {
		m.size -= len(v)
		delete(m.data, key)
	}
	return nil
}

func (m *MemoryBackend) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = make(map[string]string)
	m.size = 0
	return nil
}

// Keys returns all keys in sorted order.
func (m *MemoryBackend) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.data))
	for k := range m.data {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}
