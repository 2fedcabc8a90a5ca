package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is a process local cache with per entry expiry
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (mc *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	entry, ok := mc.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expires.IsZero() && !mc.now().Before(entry.expires) {
		delete(mc.entries, key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set keeps the entry forever when ttl <= 0
func (mc *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expires = mc.now().Add(ttl)
	}
	mc.entries[key] = entry
	return nil
}

func (mc *Memory) Ping(context.Context) error { return nil }
