package modconfig

import (
	"context"
	"sync"
)

type MemStore struct {
	lk  sync.RWMutex
	cfg ModerationConfig
}

var _ Writer = (*MemStore)(nil)

func NewMemStore(cfg ModerationConfig) *MemStore {
	if cfg.Mode == "" {
		cfg.Mode = ModeOff
	}
	return &MemStore{cfg: cfg}
}

func (s *MemStore) GetConfig(ctx context.Context) (ModerationConfig, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	return s.cfg, nil
}

func (s *MemStore) SetConfig(ctx context.Context, cfg ModerationConfig) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.cfg = cfg
	return nil
}

// Convenience for tests and tooling.
func (s *MemStore) SetMode(m Mode) {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.cfg.Mode = m
}
