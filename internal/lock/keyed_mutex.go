package lock

import (
	"context"
	"sync"
)

// Locker serializes work per key. The returned unlock func must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type keyEntry struct {
	sem  chan struct{}
	refs int
}

// KeyedMutex is an in-process Locker. Entries are dropped once no goroutine holds
// or waits on them, so memory stays proportional to in-flight keys.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyEntry
}

// NewKeyedMutex builds an empty keyed mutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[string]*keyEntry)}
}

// Lock blocks until key is free or ctx is done.
func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	entry, ok := m.entries[key]
	if !ok {
		entry = &keyEntry{sem: make(chan struct{}, 1)}
		m.entries[key] = entry
	}
	entry.refs++
	m.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		m.release(key, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.sem
			m.release(key, entry)
		})
	}, nil
}

func (m *KeyedMutex) release(key string, entry *keyEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(m.entries, key)
	}
}

// size reports tracked keys; used by tests.
func (m *KeyedMutex) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
