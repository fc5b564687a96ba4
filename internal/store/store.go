package store

import (
	"encoding/json"
	"time"

	"habit-sync/internal/metrics"
)

// KV is a JSON key-value store with per-entry expiry on top of a Backend.
//
// Design principles:
// - Every Set overwrites the whole document for its key
// - Expiry is lazy: an expired entry is deleted by the Get that finds it
// - No background sweep; see the ttl package for an opt-in one
type KV struct {
	backend Backend
	metrics *metrics.Registry
	now     func() time.Time
}

// Option configures a KV.
type Option func(*KV)

// WithClock overrides the wall clock used for timestamps and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(kv *KV) {
		if now != nil {
			kv.now = now
		}
	}
}

// NewKV initializes a store over backend.
func NewKV(backend Backend, metricsRegistry *metrics.Registry, opts ...Option) *KV {
	kv := &KV{
		backend: backend,
		metrics: metricsRegistry,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(kv)
	}
	return kv
}

// Set stores value under key. A ttl of zero or less never expires.
func (kv *KV) Set(key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return kv.fail("encode", key, err)
	}

	now := kv.now()
	entry := Entry{Value: raw, Timestamp: now.UnixMilli()}
	if ttl > 0 {
		exp := now.Add(ttl).UnixMilli()
		entry.Expiry = &exp
	}

	doc, err := json.Marshal(entry)
	if err != nil {
		return kv.fail("encode", key, err)
	}
	if err := kv.backend.SetItem(key, string(doc)); err != nil {
		return kv.fail("set", key, err)
	}

	kv.metrics.Inc(metrics.StoreSetsTotal)
	return nil
}

// SetMinutes is Set with a TTL in whole minutes; zero means no expiry.
func (kv *KV) SetMinutes(key string, value any, minutes int) error {
	return kv.Set(key, value, time.Duration(minutes)*time.Minute)
}

// Get decodes the value stored under key into dest.
//
// Behavior:
// - Returns (true, nil) if key exists and is not expired
// - If the key is expired, it is deleted and treated as missing
func (kv *KV) Get(key string, dest any) (bool, error) {
	kv.metrics.Inc(metrics.StoreGetsTotal)

	entry, ok, err := kv.read(key)
	if err != nil || !ok {
		return false, err
	}

	if entry.IsExpired(kv.now()) {
		if err := kv.backend.RemoveItem(key); err != nil {
			return false, kv.fail("remove", key, err)
		}
		kv.metrics.Inc(metrics.StoreExpiredTotal)
		return false, nil
	}

	if dest == nil {
		return true, nil
	}
	if err := json.Unmarshal(entry.Value, dest); err != nil {
		return false, kv.fail("decode", key, err)
	}
	return true, nil
}

// Remove deletes key. Removing a missing key is not an error.
func (kv *KV) Remove(key string) error {
	if err := kv.backend.RemoveItem(key); err != nil {
		return kv.fail("remove", key, err)
	}
	return nil
}

// Clear wipes the whole backend, including keys written by other components.
func (kv *KV) Clear() error {
	if err := kv.backend.Clear(); err != nil {
		return kv.fail("clear", "", err)
	}
	return nil
}

// Keys enumerates every key in the backend.
func (kv *KV) Keys() ([]string, error) {
	keys, err := kv.backend.Keys()
	if err != nil {
		return nil, kv.fail("keys", "", err)
	}
	return keys, nil
}

// RemoveExpired deletes every expired entry and returns how many were removed.
//
// Keys that do not hold an Entry document are left alone.
func (kv *KV) RemoveExpired() int {
	keys, err := kv.backend.Keys()
	if err != nil {
		kv.metrics.Inc(metrics.StoreErrorsTotal)
		return 0
	}

	now := kv.now()
	removed := 0
	for _, key := range keys {
		raw, ok, err := kv.backend.GetItem(key)
		if err != nil || !ok {
			continue
		}
		var entry Entry
		if json.Unmarshal([]byte(raw), &entry) != nil || !entry.IsExpired(now) {
			continue
		}
		if err := kv.backend.RemoveItem(key); err == nil {
			removed++
		}
	}

	if removed > 0 {
		kv.metrics.Add(metrics.StoreExpiredTotal, int64(removed))
	}
	return removed
}

func (kv *KV) read(key string) (Entry, bool, error) {
	raw, ok, err := kv.backend.GetItem(key)
	if err != nil {
		return Entry{}, false, kv.fail("get", key, err)
	}
	if !ok {
		return Entry{}, false, nil
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return Entry{}, false, kv.fail("decode", key, err)
	}
	return entry, true, nil
}

func (kv *KV) fail(op, key string, err error) error {
	kv.metrics.Inc(metrics.StoreErrorsTotal)
	return &StorageError{Op: op, Key: key, Err: err}
}
