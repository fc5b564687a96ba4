package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FileBackend keeps every key in one JSON document on disk. Each write
// rewrites the whole document through a temp file and rename, so a reader
// never observes a torn file.
type FileBackend struct {
	mu   sync.RWMutex
	path string
	data map[string]string
}

// NewFileBackend opens (or creates) the document at path.
func NewFileBackend(path string) (*FileBackend, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	clean := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(clean), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	b := &FileBackend{path: clean, data: make(map[string]string)}

	raw, err := os.ReadFile(clean)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return b, nil
		}
		return nil, fmt.Errorf("read storage file: %w", err)
	}
	if len(raw) == 0 {
		return b, nil
	}
	if err := json.Unmarshal(raw, &b.data); err != nil {
		return nil, fmt.Errorf("parse storage file: %w", err)
	}
	return b, nil
}

func (b *FileBackend) GetItem(key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v, ok := b.data[key]
	return v, ok, nil
}

func (b *FileBackend) SetItem(key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev, had := b.data[key]
	b.data[key] = value
	if err := b.flush(); err != nil {
		if had {
			b.data[key] = prev
		} else {
			delete(b.data, key)
		}
		return err
	}
	return nil
}

func (b *FileBackend) RemoveItem(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev, ok := b.data[key]
	if !ok {
		return nil
	}
	delete(b.data, key)
	if err := b.flush(); err != nil {
		b.data[key] = prev
		return err
	}
	return nil
}

func (b *FileBackend) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev := b.data
	b.data = make(map[string]string)
	if err := b.flush(); err != nil {
		b.data = prev
		return err
	}
	return nil
}

func (b *FileBackend) Keys() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, 0, len(b.data))
	for k := range b.data {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// flush must be called with b.mu held.
func (b *FileBackend) flush() error {
	raw, err := json.Marshal(b.data)
	if err != nil {
		return err
	}
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, b.path)
}
