package cachestore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store using in-process memory. It is the reference
// provider for tests and for deployments that do not need the cache to
// survive the process.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	closed  bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*Entry),
	}
}

// Connect marks the store usable. Reconnecting a disconnected store resets it.
func (m *MemoryStore) Connect(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		m.entries = make(map[string]*Entry)
		m.closed = false
	}
	return nil
}

// Disconnect drops all entries and rejects further operations.
func (m *MemoryStore) Disconnect(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = nil
	m.closed = true
	return nil
}

// Get returns the entry for the identifier, or (nil, nil) when absent.
// Expiry is not evaluated here; logical expiry is the reader's concern.
func (m *MemoryStore) Get(_ context.Context, identifier string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	return cloneEntry(m.entries[identifier]), nil
}

// Put inserts or replaces the entry under its identifier.
func (m *MemoryStore) Put(_ context.Context, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	m.entries[entry.Identifier] = cloneEntry(entry)
	return nil
}

// Clear removes the entry for the identifier, if present.
func (m *MemoryStore) Clear(_ context.Context, identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.entries, identifier)
	return nil
}

// ClearAll removes every entry.
func (m *MemoryStore) ClearAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	m.entries = make(map[string]*Entry)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}

// Cleanup removes entries that are expired at the given instant.
func (m *MemoryStore) Cleanup(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for identifier, entry := range m.entries {
		if entry.ExpiredAt(now) {
			delete(m.entries, identifier)
		}
	}
}

// Ensure MemoryStore implements Store interface
var _ Store = (*MemoryStore)(nil)
