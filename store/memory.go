package store

import (
	"encoding/json"
	"sync"
	"time"
)

// Memory is the in-process backend for single-instance deployments.
// It keeps JSON-encoded values in a lock-free concurrent map and expires
// entries lazily on read. There is no background eviction.
type Memory struct {
	entries sync.Map
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time // zero means no expiry
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Get(key string, into any) (bool, error) {
	v, ok := m.entries.Load(key)
	if !ok {
		return false, nil
	}
	entry := v.(memoryEntry)
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		m.entries.Delete(key)
		return false, nil
	}
	if err := json.Unmarshal(entry.data, into); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Memory) Set(key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	entry := memoryEntry{data: data}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	m.entries.Store(key, entry)
	return nil
}

func (m *Memory) Delete(key string) error {
	m.entries.Delete(key)
	return nil
}

func (m *Memory) Size() (int, error) {
	count := 0
	now := time.Now()
	m.entries.Range(func(_, v any) bool {
		entry := v.(memoryEntry)
		if entry.expiresAt.IsZero() || now.Before(entry.expiresAt) {
			count++
		}
		return true
	})
	return count, nil
}
