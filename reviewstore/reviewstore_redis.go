package reviewstore

import (
	"context"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

type RedisReviewStore struct {
	Data *cache.Cache
	TTL  time.Duration
}

var _ ReviewStore = (*RedisReviewStore)(nil)

func NewRedisReviewStore(redisURL string, ttl time.Duration) (*RedisReviewStore, error) {
	ctx := context.Background()
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	data := cache.New(&cache.Options{
		Redis:      rdb,
		LocalCache: cache.NewTinyLFU(1_000, time.Minute),
	})
	return &RedisReviewStore{
		Data: data,
		TTL:  ttl,
	}, nil
}

func redisReviewKey(messageKey string) string {
	return "topicmod/review/" + messageKey
}

func (s *RedisReviewStore) Get(ctx context.Context, messageKey string) (*PendingReview, error) {
	var pr PendingReview
	err := s.Data.Get(ctx, redisReviewKey(messageKey), &pr)
	if err == cache.ErrCacheMiss {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pr, nil
}

func (s *RedisReviewStore) Put(ctx context.Context, pr PendingReview) error {
	return s.Data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisReviewKey(pr.MessageKey),
		Value: pr,
		TTL:   s.TTL,
	})
}

func (s *RedisReviewStore) Purge(ctx context.Context, messageKey string) error {
	err := s.Data.Delete(ctx, redisReviewKey(messageKey))
	if err == cache.ErrCacheMiss {
		return nil
	}
	return err
}
