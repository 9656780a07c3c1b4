package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/shandysiswandi/watchsync/internal/pkg/clock"
)

// NewMemory returns a tracker scoped to this process. Expiry follows clk.
func NewMemory(clk clock.Clocker) *StateTracker {
	return &StateTracker{
		store:  &memoryBackend{clock: clk, entries: make(map[string]memoryEntry)},
		prefix: defaultPrefix,
	}
}

type memoryEntry struct {
	value    string
	expireAt time.Time
}

type memoryBackend struct {
	mu      sync.Mutex
	clock   clock.Clocker
	entries map[string]memoryEntry
}

func (m *memoryBackend) lookup(key string) (memoryEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !m.clock.Now().Before(e.expireAt) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (m *memoryBackend) setNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.lookup(key); ok {
		return false, nil
	}
	m.entries[key] = memoryEntry{value: value, expireAt: m.clock.Now().Add(ttl)}
	return true, nil
}

func (m *memoryBackend) get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	return e.value, ok, nil
}

func (m *memoryBackend) set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry{value: value, expireAt: m.clock.Now().Add(ttl)}
	return nil
}
