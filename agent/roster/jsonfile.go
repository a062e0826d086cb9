package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/frogteam/frogteam/internal/filelock"
)

// readJSON decodes path into v under a shared lock. A missing or empty file
// leaves v untouched and reports found=false.
func readJSON(ctx context.Context, path string, v any) (found bool, err error) {
	err = filelock.WithLock(ctx, path, filelock.Shared, func() error {
		data, rerr := os.ReadFile(path)
		if os.IsNotExist(rerr) {
			return nil
		}
		if rerr != nil {
			return rerr
		}
		if len(data) == 0 {
			return nil
		}
		found = true
		return json.Unmarshal(data, v)
	})
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	return found, nil
}

// writeJSON atomically replaces path with v under an exclusive lock.
func writeJSON(ctx context.Context, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return filelock.WithLock(ctx, path, filelock.Exclusive, func() error {
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			return err
		}
		return os.Rename(tmp, path)
	})
}
