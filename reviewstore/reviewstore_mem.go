package reviewstore

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type MemReviewStore struct {
	Data *expirable.LRU[string, PendingReview]
}

var _ ReviewStore = (*MemReviewStore)(nil)

func NewMemReviewStore(capacity int, ttl time.Duration) *MemReviewStore {
	return &MemReviewStore{
		Data: expirable.NewLRU[string, PendingReview](capacity, nil, ttl),
	}
}

func (s *MemReviewStore) Get(ctx context.Context, messageKey string) (*PendingReview, error) {
	v, ok := s.Data.Get(messageKey)
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (s *MemReviewStore) Put(ctx context.Context, pr PendingReview) error {
	s.Data.Add(pr.MessageKey, pr)
	return nil
}

func (s *MemReviewStore) Purge(ctx context.Context, messageKey string) error {
	s.Data.Remove(messageKey)
	return nil
}
