package persist

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/topicmod/topicmod/classifier"
	"github.com/topicmod/topicmod/examplestore"
)

const (
	examplesFileName   = "training-examples.json"
	classifierFileName = "classifier-state.json"
)

type FileStore struct {
	Dir string

	lk sync.Mutex
}

var _ Store = (*FileStore)(nil)

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, err
	}
	return &FileStore{Dir: dir}, nil
}

func (s *FileStore) readFile(name string) ([]byte, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	raw, err := os.ReadFile(filepath.Join(s.Dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return raw, err
}

// write-then-rename, so a crash never leaves a truncated file
func (s *FileStore) writeFile(name string, raw []byte) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	p := filepath.Join(s.Dir, name)
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

func (s *FileStore) LoadExamples(ctx context.Context) ([]examplestore.LabeledExample, error) {
	raw, err := s.readFile(examplesFileName)
	if err != nil {
		return nil, loadErr("examples", err)
	}
	if raw == nil {
		return []examplestore.LabeledExample{}, nil
	}
	var out []examplestore.LabeledExample
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, loadErr("examples", err)
	}
	return out, nil
}

func (s *FileStore) SaveExamples(ctx context.Context, examples []examplestore.LabeledExample) error {
	raw, err := json.MarshalIndent(examples, "", "  ")
	if err != nil {
		return saveErr("examples", err)
	}
	if err := s.writeFile(examplesFileName, raw); err != nil {
		return saveErr("examples", err)
	}
	return nil
}

func (s *FileStore) LoadClassifierState(ctx context.Context) (*classifier.State, error) {
	raw, err := s.readFile(classifierFileName)
	if err != nil {
		return nil, loadErr("classifier state", err)
	}
	if raw == nil {
		return nil, nil
	}
	st, err := classifier.DecodeState(raw)
	if err != nil {
		return nil, loadErr("classifier state", err)
	}
	return st, nil
}

func (s *FileStore) SaveClassifierState(ctx context.Context, st *classifier.State) error {
	raw, err := st.Encode()
	if err != nil {
		return saveErr("classifier state", err)
	}
	if err := s.writeFile(classifierFileName, raw); err != nil {
		return saveErr("classifier state", err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}
