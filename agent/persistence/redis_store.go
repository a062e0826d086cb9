package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisJobStore keeps the snapshot in a Redis list, one JSON job per element.
type RedisJobStore struct {
	client redis.UniversalClient
	key    string
	owned  bool
}

// NewRedisJobStore dials Redis and verifies the connection.
func NewRedisJobStore(cfg RedisConfig) (*RedisJobStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s := NewRedisJobStoreWithClient(client, cfg.KeyPrefix)
	s.owned = true
	return s, nil
}

// NewRedisJobStoreWithClient wraps an existing client; Close leaves it open.
func NewRedisJobStoreWithClient(client redis.UniversalClient, keyPrefix string) *RedisJobStore {
	if keyPrefix == "" {
		keyPrefix = "frogteam:"
	}
	return &RedisJobStore{client: client, key: keyPrefix + "queue:snapshot"}
}

func (s *RedisJobStore) SaveSnapshot(ctx context.Context, jobs []JobSpec) error {
	values := make([]any, 0, len(jobs))
	for _, j := range jobs {
		data, err := json.Marshal(j)
		if err != nil {
			return err
		}
		values = append(values, data)
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(values) > 0 {
			pipe.RPush(ctx, s.key, values...)
		}
		return nil
	})
	return err
}

func (s *RedisJobStore) LoadSnapshot(ctx context.Context) ([]JobSpec, error) {
	raw, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	jobs := make([]JobSpec, 0, len(raw))
	for _, r := range raw {
		var j JobSpec
		if err := json.Unmarshal([]byte(r), &j); err != nil {
			return nil, fmt.Errorf("decode queued job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func (s *RedisJobStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

func (s *RedisJobStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisJobStore) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}
