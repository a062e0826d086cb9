package history

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// StoreType selects the history backend.
type StoreType string

const (
	StoreTypeMemory   StoreType = "memory"
	StoreTypeFile     StoreType = "file"
	StoreTypeDatabase StoreType = "database"
	StoreTypeRedis    StoreType = "redis"
)

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr      string `json:"addr" yaml:"addr"`
	Password  string `json:"password" yaml:"password"`
	DB        int    `json:"db" yaml:"db"`
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
}

// StoreConfig selects and configures a backend.
type StoreConfig struct {
	Type        StoreType   `json:"type" yaml:"type"`
	FilePath    string      `json:"file_path" yaml:"file_path"`
	AutoMigrate bool        `json:"auto_migrate" yaml:"auto_migrate"`
	Redis       RedisConfig `json:"redis" yaml:"redis"`
}

// NewStore creates the configured store. db is required for the database
// backend; the redis backend opens its own client.
func NewStore(cfg StoreConfig, db *gorm.DB) (Store, error) {
	switch cfg.Type {
	case StoreTypeMemory:
		return NewMemoryStore(), nil
	case StoreTypeFile, "":
		return NewFileStore(cfg.FilePath)
	case StoreTypeDatabase:
		return NewGormStore(db, cfg.AutoMigrate)
	case StoreTypeRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		s, err := NewRedisStore(client, cfg.Redis.KeyPrefix)
		if err != nil {
			client.Close()
			return nil, err
		}
		s.owned = true
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported history store type: %s", cfg.Type)
	}
}
