package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/frogteam/frogteam/internal/filelock"
)

// FileStore keeps the log as a JSON array, rewritten whole on every save.
type FileStore struct {
	path   string
	mu     sync.Mutex
	closed bool
}

// NewFileStore creates a store backed by path (history.json).
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: history file path is empty", ErrInvalidInput)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

// Load reads the log. A missing file is created empty.
func (s *FileStore) Load(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	var entries []Entry
	missing := false
	err := filelock.WithLock(ctx, s.path, filelock.Shared, func() error {
		data, err := os.ReadFile(s.path)
		if os.IsNotExist(err) {
			missing = true
			return nil
		}
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return nil
		}
		return json.Unmarshal(data, &entries)
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if missing {
		return []Entry{}, s.saveLocked(ctx, []Entry{})
	}
	return entries, nil
}

// Save rewrites the file atomically.
func (s *FileStore) Save(ctx context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	return s.saveLocked(ctx, entries)
}

func (s *FileStore) saveLocked(ctx context.Context, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return filelock.WithLock(ctx, s.path, filelock.Exclusive, func() error {
		// 原子写: 写入临时文件后重命名
		tempPath := s.path + ".tmp"
		if err := os.WriteFile(tempPath, data, 0o644); err != nil {
			return err
		}
		return os.Rename(tempPath, s.path)
	})
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
