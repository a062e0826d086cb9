package persistence

import (
	"context"
	"sync"
)

// MemoryJobStore keeps the snapshot in memory.
type MemoryJobStore struct {
	mu     sync.RWMutex
	jobs   []JobSpec
	closed bool
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{}
}

func (s *MemoryJobStore) SaveSnapshot(ctx context.Context, jobs []JobSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.jobs = cloneJobs(jobs)
	return nil
}

func (s *MemoryJobStore) LoadSnapshot(ctx context.Context) ([]JobSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	return cloneJobs(s.jobs), nil
}

func (s *MemoryJobStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.jobs = nil
	return nil
}

func (s *MemoryJobStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

func (s *MemoryJobStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
