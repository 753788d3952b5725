package sessionstore

import (
	"context"
	"sync"
)

// MemoryKV is a process-local KV. Every console in the process shares it,
// which makes it the single-instance stand-in for browser local storage.
type MemoryKV struct {
	mu       sync.RWMutex
	data     map[string][]byte
	watchers map[int]func(key string)
	nextID   int
}

// NewMemoryKV creates an empty in-memory backend
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		data:     make(map[string][]byte),
		watchers: make(map[int]func(key string)),
	}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	m.data[key] = stored
	m.mu.Unlock()
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

// Publish fans the key out to every registered watcher synchronously
func (m *MemoryKV) Publish(_ context.Context, key string) error {
	m.mu.RLock()
	fns := make([]func(string), 0, len(m.watchers))
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	m.mu.RUnlock()

	for _, fn := range fns {
		fn(key)
	}
	return nil
}

// Watch registers fn and blocks until ctx is done
func (m *MemoryKV) Watch(ctx context.Context, fn func(key string)) error {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = fn
	m.mu.Unlock()

	<-ctx.Done()

	m.mu.Lock()
	delete(m.watchers, id)
	m.mu.Unlock()
	return ctx.Err()
}

// watcherCount is used by tests to wait for a Watch registration
func (m *MemoryKV) watcherCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.watchers)
}
