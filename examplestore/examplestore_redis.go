package examplestore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var redisExamplesKey = "topicmod/examples"

// Keeps all examples as fields of a single redis hash, so that HLEN is the distinct-key count and HSET reports whether a field was new.
type RedisExampleStore struct {
	Client *redis.Client
}

var _ ExampleStore = (*RedisExampleStore)(nil)

func NewRedisExampleStore(redisURL string) (*RedisExampleStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return &RedisExampleStore{
		Client: rdb,
	}, nil
}

func (s *RedisExampleStore) Upsert(ctx context.Context, ex LabeledExample) (int, error) {
	if ex.Key == "" {
		return 0, fmt.Errorf("example key is required")
	}
	val, err := json.Marshal(ex)
	if err != nil {
		return 0, err
	}

	// write and count in a single round-trip
	multi := s.Client.TxPipeline()
	multi.HSet(ctx, redisExamplesKey, ex.Key, val)
	count := multi.HLen(ctx, redisExamplesKey)
	if _, err := multi.Exec(ctx); err != nil {
		return 0, err
	}
	return int(count.Val()), nil
}

func (s *RedisExampleStore) Count(ctx context.Context) (int, error) {
	c, err := s.Client.HLen(ctx, redisExamplesKey).Result()
	if err == redis.Nil {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return int(c), nil
}

func (s *RedisExampleStore) All(ctx context.Context) ([]LabeledExample, error) {
	m, err := s.Client.HGetAll(ctx, redisExamplesKey).Result()
	if err == redis.Nil {
		return []LabeledExample{}, nil
	} else if err != nil {
		return nil, err
	}
	out := make([]LabeledExample, 0, len(m))
	for k, raw := range m {
		var ex LabeledExample
		if err := json.Unmarshal([]byte(raw), &ex); err != nil {
			return nil, fmt.Errorf("decoding example %s: %w", k, err)
		}
		out = append(out, ex)
	}
	return out, nil
}

func (s *RedisExampleStore) Clear(ctx context.Context) error {
	return s.Client.Del(ctx, redisExamplesKey).Err()
}
