package modconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSON file backed configuration. The file is re-read on every GetConfig, so edits from other processes (eg, the CLI) take effect without a restart.
type FileStore struct {
	Path string

	lk sync.Mutex
}

var _ Writer = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// A missing file is an all-zero config with moderation off.
func (s *FileStore) GetConfig(ctx context.Context) (ModerationConfig, error) {
	s.lk.Lock()
	defer s.lk.Unlock()

	raw, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return ModerationConfig{Mode: ModeOff}, nil
	} else if err != nil {
		return ModerationConfig{}, err
	}
	var cfg ModerationConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return ModerationConfig{}, fmt.Errorf("parsing config file %s: %w", s.Path, err)
	}
	m, err := ParseMode(string(cfg.Mode))
	if err != nil {
		return ModerationConfig{}, err
	}
	cfg.Mode = m
	return cfg, nil
}

func (s *FileStore) SetConfig(ctx context.Context, cfg ModerationConfig) error {
	s.lk.Lock()
	defer s.lk.Unlock()

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), os.ModePerm); err != nil {
		return err
	}
	// write-then-rename, so readers never see a partial file
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.Path)
}
