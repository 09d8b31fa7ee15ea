package examplestore

import (
	"context"
	"fmt"
	"sync"
)

type MemExampleStore struct {
	lk   sync.RWMutex
	data map[string]LabeledExample
}

var _ ExampleStore = (*MemExampleStore)(nil)

func NewMemExampleStore() *MemExampleStore {
	return &MemExampleStore{
		data: make(map[string]LabeledExample),
	}
}

func (s *MemExampleStore) Upsert(ctx context.Context, ex LabeledExample) (int, error) {
	if ex.Key == "" {
		return 0, fmt.Errorf("example key is required")
	}
	s.lk.Lock()
	defer s.lk.Unlock()
	s.data[ex.Key] = ex
	return len(s.data), nil
}

func (s *MemExampleStore) Count(ctx context.Context) (int, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	return len(s.data), nil
}

func (s *MemExampleStore) All(ctx context.Context) ([]LabeledExample, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	out := make([]LabeledExample, 0, len(s.data))
	for _, ex := range s.data {
		out = append(out, ex)
	}
	return out, nil
}

func (s *MemExampleStore) Clear(ctx context.Context) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.data = make(map[string]LabeledExample)
	return nil
}
