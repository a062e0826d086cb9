package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/frogteam/frogteam/internal/filelock"
)

// FileJobStore 将快照写入单个 JSON 数组文件 (queue-backup.json).
// 写入走临时文件 + 重命名, 并持有排他文件锁.
type FileJobStore struct {
	path   string
	mu     sync.Mutex
	closed bool
}

// NewFileJobStore creates the parent directory of path if needed.
func NewFileJobStore(path string) (*FileJobStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty snapshot path", ErrInvalidInput)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &FileJobStore{path: path}, nil
}

// Path returns the snapshot file.
func (s *FileJobStore) Path() string { return s.path }

func (s *FileJobStore) SaveSnapshot(ctx context.Context, jobs []JobSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if jobs == nil {
		jobs = []JobSpec{}
	}
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return err
	}
	return filelock.WithLock(ctx, s.path, filelock.Exclusive, func() error {
		tmp := s.path + ".tmp"
		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			return err
		}
		return os.Rename(tmp, s.path)
	})
}

func (s *FileJobStore) LoadSnapshot(ctx context.Context) ([]JobSpec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	var jobs []JobSpec
	err := filelock.WithLock(ctx, s.path, filelock.Shared, func() error {
		data, err := os.ReadFile(s.path)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return nil
		}
		return json.Unmarshal(data, &jobs)
	})
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", s.path, err)
	}
	return cloneJobs(jobs), nil
}

func (s *FileJobStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	return filelock.WithLock(ctx, s.path, filelock.Exclusive, func() error {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	})
}

func (s *FileJobStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

func (s *FileJobStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
