// Storage for human-labeled training examples.
//
// Examples are keyed by a string which identifies both the reviewed message and the reviewer, so the same message judged by two reviewers yields two examples. Upserting an existing key replaces the record; the store's count is always the number of distinct keys.
package examplestore

import (
	"context"
	"fmt"
	"time"

	"github.com/topicmod/topicmod/features"
)

type Label string

const (
	LabelAppropriate Label = "appropriate"
	LabelRejected    Label = "rejected"
)

func (l Label) Valid() bool {
	return l == LabelAppropriate || l == LabelRejected
}

type LabeledExample struct {
	Key        string                 `json:"key"`
	Features   features.FeatureVector `json:"features"`
	Label      Label                  `json:"label"`
	MessageKey string                 `json:"messageKey,omitempty"`
	ReviewerID int64                  `json:"reviewerId,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
}

// Builds the example key for a message reviewed by a specific reviewer.
func ExampleKey(messageKey string, reviewerID int64) string {
	return fmt.Sprintf("%s/%d", messageKey, reviewerID)
}

type ExampleStore interface {
	// Inserts or replaces the example with the same key, and returns the count of distinct keys after the write.
	Upsert(ctx context.Context, ex LabeledExample) (int, error)
	Count(ctx context.Context) (int, error)
	// All examples, in no particular order.
	All(ctx context.Context) ([]LabeledExample, error)
	Clear(ctx context.Context) error
}
