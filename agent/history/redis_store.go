package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the log as a Redis list of JSON documents.
type RedisStore struct {
	client redis.UniversalClient
	key    string
	owned  bool
}

// NewRedisStore uses client; keyPrefix defaults to "frogteam:".
func NewRedisStore(client redis.UniversalClient, keyPrefix string) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: redis client cannot be nil", ErrInvalidInput)
	}
	if keyPrefix == "" {
		keyPrefix = "frogteam:"
	}
	return &RedisStore{client: client, key: keyPrefix + "history:entries"}, nil
}

// Key returns the list key.
func (s *RedisStore) Key() string { return s.key }

func (s *RedisStore) Load(ctx context.Context) ([]Entry, error) {
	raw, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history list: %w", err)
	}
	out := make([]Entry, 0, len(raw))
	for i, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("decode history entry %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *RedisStore) Append(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}
	return s.client.RPush(ctx, s.key, data).Err()
}

// Save rewrites the list in a single transaction.
func (s *RedisStore) Save(ctx context.Context, entries []Entry) error {
	values := make([]any, 0, len(entries))
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal entry: %w", err)
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

// Close closes the client only when the store created it.
func (s *RedisStore) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}
