package store

import (
	"context"
	"sync"
)

// InmemBackend is a map-backed Backend for tests and ephemeral trees.
// The zero value is ready to use.
type InmemBackend struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

var _ Backend = (*InmemBackend)(nil)

// NewInmemBackend creates an empty in-memory backend.
func NewInmemBackend() *InmemBackend {
	return &InmemBackend{entries: make(map[string][]byte)}
}

// Get returns the entry for key, or nil if it is not present.
func (b *InmemBackend) Get(_ context.Context, key string) (*Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	value, ok := b.entries[key]
	if !ok {
		return nil, nil
	}

	// Copy so callers cannot mutate the stored bytes.
	out := make([]byte, len(value))
	copy(out, value)
	return &Entry{Key: key, Value: out}, nil
}

// Put stores the entry, overwriting any previous value.
func (b *InmemBackend) Put(_ context.Context, entry *Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.entries == nil {
		b.entries = make(map[string][]byte)
	}
	value := make([]byte, len(entry.Value))
	copy(value, entry.Value)
	b.entries[entry.Key] = value
	return nil
}

// Delete removes the entry for key if present.
func (b *InmemBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.entries, key)
	return nil
}

// Len returns the number of stored entries.
func (b *InmemBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.entries)
}
