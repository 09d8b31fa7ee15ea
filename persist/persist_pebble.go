package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/topicmod/topicmod/classifier"
	"github.com/topicmod/topicmod/examplestore"
)

var (
	// examples live under "ex/{key}"; '0' is the byte after '/'
	examplePrefix     = []byte("ex/")
	exampleUpperBound = []byte("ex0")
	classifierKey     = []byte("state/classifier")
)

type PebbleStore struct {
	db *pebble.DB
}

var _ Store = (*PebbleStore)(nil)

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble database: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

func exampleKey(key string) []byte {
	return append(append([]byte{}, examplePrefix...), key...)
}

func (s *PebbleStore) LoadExamples(ctx context.Context) ([]examplestore.LabeledExample, error) {
	iter, err := s.db.NewIterWithContext(ctx, &pebble.IterOptions{
		LowerBound: examplePrefix,
		UpperBound: exampleUpperBound,
	})
	if err != nil {
		return nil, loadErr("examples", err)
	}
	defer iter.Close()

	out := []examplestore.LabeledExample{}
	for iter.First(); iter.Valid(); iter.Next() {
		value, err := iter.ValueAndErr()
		if err != nil {
			return nil, loadErr("examples", err)
		}
		var ex examplestore.LabeledExample
		if err := json.Unmarshal(value, &ex); err != nil {
			return nil, loadErr(fmt.Sprintf("example %s", iter.Key()), err)
		}
		out = append(out, ex)
	}
	if err := iter.Error(); err != nil {
		return nil, loadErr("examples", err)
	}
	return out, nil
}

func (s *PebbleStore) SaveExamples(ctx context.Context, examples []examplestore.LabeledExample) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.DeleteRange(examplePrefix, exampleUpperBound, nil); err != nil {
		return saveErr("examples", err)
	}
	for _, ex := range examples {
		val, err := json.Marshal(ex)
		if err != nil {
			return saveErr("example "+ex.Key, err)
		}
		if err := batch.Set(exampleKey(ex.Key), val, nil); err != nil {
			return saveErr("example "+ex.Key, err)
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return saveErr("examples", err)
	}
	return nil
}

func (s *PebbleStore) LoadClassifierState(ctx context.Context) (*classifier.State, error) {
	value, closer, err := s.db.Get(classifierKey)
	if closer != nil {
		defer closer.Close()
	}
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, loadErr("classifier state", err)
	}
	// DecodeState copies out of the buffer, which is only valid until closer.Close()
	st, err := classifier.DecodeState(value)
	if err != nil {
		return nil, loadErr("classifier state", err)
	}
	return st, nil
}

func (s *PebbleStore) SaveClassifierState(ctx context.Context, st *classifier.State) error {
	raw, err := st.Encode()
	if err != nil {
		return saveErr("classifier state", err)
	}
	if err := s.db.Set(classifierKey, raw, pebble.Sync); err != nil {
		return saveErr("classifier state", err)
	}
	return nil
}

func (s *PebbleStore) Close() error {
	if err := s.db.Flush(); err != nil {
		return err
	}
	return s.db.Close()
}
