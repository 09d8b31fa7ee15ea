// Durable storage for labeled examples and classifier state.
//
// Both collections have whole-collection load/replace semantics. Backends are selected by URL with Open.
package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/topicmod/topicmod/classifier"
	"github.com/topicmod/topicmod/examplestore"
	"github.com/topicmod/topicmod/util/cliutil"
)

var (
	ErrLoadFailed = errors.New("loading persisted state failed")
	ErrSaveFailed = errors.New("saving state failed")
)

type Store interface {
	LoadExamples(ctx context.Context) ([]examplestore.LabeledExample, error)
	SaveExamples(ctx context.Context, examples []examplestore.LabeledExample) error
	// Returns nil (and no error) if no state has been saved yet.
	LoadClassifierState(ctx context.Context) (*classifier.State, error)
	SaveClassifierState(ctx context.Context, st *classifier.State) error
	Close() error
}

// Opens a persistence backend by URL:
//
// - "file://path/to/dir": JSON files in a directory
// - "sqlite://path/to/file.sqlite" or "postgres://...": SQL database
// - "pebble://path/to/dir": embedded pebble key/value store
func Open(ctx context.Context, url string, logger *slog.Logger) (Store, error) {
	switch {
	case strings.HasPrefix(url, "file://"):
		return NewFileStore(url[len("file://"):])
	case strings.HasPrefix(url, "pebble://"):
		return NewPebbleStore(url[len("pebble://"):])
	case strings.HasPrefix(url, "sqlite://"), strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		db, err := cliutil.SetupDatabase(url, 20, logger)
		if err != nil {
			return nil, fmt.Errorf("opening persistence database: %w", err)
		}
		return NewGormStore(db)
	default:
		return nil, fmt.Errorf("unsupported persistence URL: %s", url)
	}
}

func loadErr(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrLoadFailed, what, err)
}

func saveErr(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrSaveFailed, what, err)
}
