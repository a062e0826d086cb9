package history

import (
	"context"
	"errors"
	"sync"
)

// Common errors
var (
	ErrStoreClosed  = errors.New("history store is closed")
	ErrInvalidInput = errors.New("invalid input")
)

// Store persists the whole log.
type Store interface {
	// Load returns every persisted entry in append order.
	Load(ctx context.Context) ([]Entry, error)
	// Save replaces the persisted log with entries.
	Save(ctx context.Context, entries []Entry) error
	Close() error
}

// Appender is implemented by stores that can persist a single new entry
// without rewriting the log.
type Appender interface {
	Append(ctx context.Context, e Entry) error
}

// MemoryStore keeps the log in memory. Used by tests and the memory backend.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
	closed  bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.entries = make([]Entry, len(entries))
	copy(s.entries, entries)
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
