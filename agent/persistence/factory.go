package persistence

import "fmt"

// NewJobStore creates a JobStore based on the configuration.
func NewJobStore(config StoreConfig) (JobStore, error) {
	switch config.Type {
	case StoreTypeMemory, "":
		return NewMemoryJobStore(), nil
	case StoreTypeFile:
		path := config.FilePath
		if path == "" {
			path = DefaultSnapshotFile
		}
		return NewFileJobStore(path)
	case StoreTypeRedis:
		return NewRedisJobStore(config.Redis)
	default:
		return nil, fmt.Errorf("unsupported job store type: %s", config.Type)
	}
}
