package persistence

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrStoreClosed  = errors.New("store is closed")
	ErrInvalidInput = errors.New("invalid input")
)

// StoreType represents the type of storage backend
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeFile   StoreType = "file"
	StoreTypeRedis  StoreType = "redis"
)

// DefaultSnapshotFile is the file name used by the file backend.
const DefaultSnapshotFile = "queue-backup.json"

// JobType identifies what a queued job does.
type JobType string

const (
	JobMemberAssignment JobType = "member-assignment"
	JobDalleImage       JobType = "dalle-image"
	JobStabilityImage   JobType = "stability-image"
)

// Valid reports whether t is a known job type.
func (t JobType) Valid() bool {
	switch t {
	case JobMemberAssignment, JobDalleImage, JobStabilityImage:
		return true
	}
	return false
}

// JobSpec is the durable half of a queued job.
type JobSpec struct {
	ID             string    `json:"id"`
	Type           JobType   `json:"type"`
	Caller         string    `json:"caller"`
	Member         string    `json:"member"`
	Question       string    `json:"question"`
	ConversationID string    `json:"conversationId"`
	ParentID       string    `json:"parentId,omitempty"`
	Project        string    `json:"project,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	TokenEstimate  int       `json:"tokenEstimate"`
}

// JobStore saves and restores the pending job list.
type JobStore interface {
	// SaveSnapshot replaces the stored snapshot with jobs.
	SaveSnapshot(ctx context.Context, jobs []JobSpec) error
	// LoadSnapshot returns the stored jobs in queue order. No snapshot yields nil.
	LoadSnapshot(ctx context.Context) ([]JobSpec, error)
	// Clear removes the snapshot.
	Clear(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr      string `json:"addr" yaml:"addr"`
	Password  string `json:"password" yaml:"password"`
	DB        int    `json:"db" yaml:"db"`
	PoolSize  int    `json:"pool_size" yaml:"pool_size"`
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
}

// StoreConfig selects and configures a JobStore backend.
type StoreConfig struct {
	Type StoreType `json:"type" yaml:"type"`

	// FilePath is the snapshot file for the file backend.
	FilePath string `json:"file_path" yaml:"file_path"`

	Redis RedisConfig `json:"redis" yaml:"redis"`
}

// DefaultStoreConfig returns an in-memory configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type:     StoreTypeMemory,
		FilePath: DefaultSnapshotFile,
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			KeyPrefix: "frogteam:",
		},
	}
}

func cloneJobs(jobs []JobSpec) []JobSpec {
	if len(jobs) == 0 {
		return nil
	}
	return append([]JobSpec(nil), jobs...)
}
