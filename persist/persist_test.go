package persist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/topicmod/topicmod/classifier"
	"github.com/topicmod/topicmod/examplestore"
	"github.com/topicmod/topicmod/features"

	"github.com/stretchr/testify/assert"
)

func fixtureExamples(n int) []examplestore.LabeledExample {
	var out []examplestore.LabeledExample
	for i := 0; i < n; i++ {
		label := examplestore.LabelAppropriate
		text := fmt.Sprintf("selling bike number %d", i)
		if i%2 == 1 {
			label = examplestore.LabelRejected
			text = fmt.Sprintf("join t.me/spam%d for profit", i)
		}
		out = append(out, examplestore.LabeledExample{
			Key:        examplestore.ExampleKey(fmt.Sprintf("-100:%d", i), 7),
			Features:   features.Extract(text),
			Label:      label,
			MessageKey: fmt.Sprintf("-100:%d", i),
			ReviewerID: 7,
		})
	}
	return out
}

func testStoreRoundTrip(t *testing.T, s Store) {
	assert := assert.New(t)
	ctx := context.Background()

	// empty
	exs, err := s.LoadExamples(ctx)
	assert.NoError(err)
	assert.Empty(exs)
	st, err := s.LoadClassifierState(ctx)
	assert.NoError(err)
	assert.Nil(st)

	// examples: whole-collection replace
	assert.NoError(s.SaveExamples(ctx, fixtureExamples(6)))
	assert.NoError(s.SaveExamples(ctx, fixtureExamples(4)))
	exs, err = s.LoadExamples(ctx)
	assert.NoError(err)
	assert.Equal(4, len(exs))
	byKey := make(map[string]examplestore.LabeledExample)
	for _, ex := range exs {
		byKey[ex.Key] = ex
	}
	for _, want := range fixtureExamples(4) {
		got, ok := byKey[want.Key]
		if assert.True(ok, want.Key) {
			assert.Equal(want.Label, got.Label)
			assert.Equal(want.Features, got.Features)
			assert.Equal(want.MessageKey, got.MessageKey)
			assert.Equal(want.ReviewerID, got.ReviewerID)
		}
	}

	// untrained state
	assert.NoError(s.SaveClassifierState(ctx, classifier.NewState(3)))
	st, err = s.LoadClassifierState(ctx)
	assert.NoError(err)
	if assert.NotNil(st) {
		assert.False(st.Trained)
		assert.Equal(3, st.TrainingGoal)
	}

	// trained state, overwriting
	m, err := classifier.Train(fixtureExamples(6), classifier.DefaultOptions())
	assert.NoError(err)
	trained := classifier.NewTrainedState(m, 6, 6)
	assert.NoError(s.SaveClassifierState(ctx, trained))
	st, err = s.LoadClassifierState(ctx)
	assert.NoError(err)
	if assert.NotNil(st) {
		assert.True(st.Trained)
		for _, txt := range []string{"selling bike", "t.me/spam", "hello there"} {
			fv := features.Extract(txt)
			want, _ := trained.Infer(fv)
			got, ok := st.Infer(fv)
			assert.True(ok)
			assert.InDelta(want, got, 1e-12)
		}
	}

	assert.NoError(s.SaveExamples(ctx, nil))
	exs, err = s.LoadExamples(ctx)
	assert.NoError(err)
	assert.Empty(exs)
}

func TestFileStore(t *testing.T) {
	s, err := Open(context.Background(), "file://"+filepath.Join(t.TempDir(), "data"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	testStoreRoundTrip(t, s)
}

func TestFileStoreCorrupt(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	assert.NoError(os.WriteFile(filepath.Join(dir, examplesFileName), []byte("{nope"), 0644))
	assert.NoError(os.WriteFile(filepath.Join(dir, classifierFileName), []byte("[]"), 0644))

	_, err = s.LoadExamples(ctx)
	assert.True(errors.Is(err, ErrLoadFailed))
	_, err = s.LoadClassifierState(ctx)
	assert.True(errors.Is(err, ErrLoadFailed))
}

func TestPebbleStore(t *testing.T) {
	s, err := Open(context.Background(), "pebble://"+filepath.Join(t.TempDir(), "pebble"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	testStoreRoundTrip(t, s)
}

func TestGormStore(t *testing.T) {
	s, err := Open(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "topicmod.sqlite"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	testStoreRoundTrip(t, s)
}

func TestOpenUnsupported(t *testing.T) {
	_, err := Open(context.Background(), "ftp://example.com", nil)
	assert.Error(t, err)
}
