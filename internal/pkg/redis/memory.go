package redis

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// Memory is an in-process Cache for one-shot runs and tests.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *Memory) get(key string) ([]byte, bool) {
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return nil, false
	}
	return e.value, true
}

func (m *Memory) set(key string, value []byte, exp time.Duration) {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if exp > 0 {
		e.expires = m.now().Add(exp)
	}
	m.entries[key] = e
}

func (m *Memory) SetString(ctx context.Context, key, value string, exp time.Duration) error {
	return m.SetBytes(ctx, key, []byte(value), exp)
}

func (m *Memory) GetString(ctx context.Context, key string) (string, error) {
	b, err := m.GetBytes(ctx, key)
	return string(b), err
}

func (m *Memory) SetBytes(_ context.Context, key string, value []byte, exp time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(key, value, exp)
	return nil
}

func (m *Memory) GetBytes(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.get(key)
	if !ok {
		return nil, Nil
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.get(key)
	return ok, nil
}

func (m *Memory) Del(_ context.Context, keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := m.get(k); ok {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Expire(_ context.Context, key string, seconds int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.get(key)
	if !ok {
		return false, nil
	}
	m.set(key, v, time.Duration(seconds)*time.Second)
	return true, nil
}
