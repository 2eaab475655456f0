package driver

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt int64
}

// MemoryKV in-process KeyValueDB, contents are lost on exit
type MemoryKV struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

var _ KeyValueDB = &MemoryKV{}

// NewMemoryKV create an empty MemoryKV
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Set implement KeyValueDB
func (m *MemoryKV) Set(ctx context.Context, key string, value string) error {
	return m.SetEX(ctx, key, value, 0)
}

// SetEX implement KeyValueDB
func (m *MemoryKV) SetEX(ctx context.Context, key string, value string, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: value, expiresAt: expiresAt(m.now(), expiration)}
	return nil
}

// Get implement KeyValueDB
func (m *MemoryKV) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok || expired(e.expiresAt, m.now()) {
		return "", ErrKeyNotFound
	}
	return e.value, nil
}

// Exists implement KeyValueDB
func (m *MemoryKV) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.Get(ctx, key)
	if err == ErrKeyNotFound {
		return false, nil
	}
	return err == nil, err
}

// Delete implement KeyValueDB
func (m *MemoryKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Ping implement KeyValueDB
func (m *MemoryKV) Ping(ctx context.Context) error {
	return nil
}

// Close implement KeyValueDB
func (m *MemoryKV) Close() error {
	return nil
}
