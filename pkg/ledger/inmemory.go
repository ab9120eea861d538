package ledger

import (
	"context"
	"sync"
)

// InMemory is a thread-safe Ledger backed by a map. Entries live for the
// lifetime of the process.
type InMemory struct {
	mu   sync.RWMutex
	data map[string]Entry
}

// NewInMemory creates an empty in-memory ledger.
func NewInMemory() *InMemory {
	return &InMemory{data: make(map[string]Entry)}
}

func (l *InMemory) Lookup(_ context.Context, key string) (Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.data[key]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (l *InMemory) Record(_ context.Context, key string, entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.data[key] = entry
	return nil
}

func (l *InMemory) Close() error { return nil }
