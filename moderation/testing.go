package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/topicmod/topicmod/classifier"
	"github.com/topicmod/topicmod/examplestore"
	"github.com/topicmod/topicmod/modconfig"
	"github.com/topicmod/topicmod/reviewstore"
)

type SentMessage struct {
	TargetID   int64
	ReplyTo    int64
	Text       string
	MessageKey string
}

type DeletedMessage struct {
	ChatID    int64
	MessageID int64
}

// In-memory Gateway which records every call. Safe for concurrent use.
type MockGateway struct {
	mu sync.Mutex

	Prompts       []SentMessage
	Notifications []SentMessage
	Replies       []SentMessage
	Deleted       []DeletedMessage

	// if set, returned by every DeleteMessage call
	DeleteErr error
	// if set, returned by every SendReviewPrompt call
	PromptErr error
}

var _ Gateway = (*MockGateway)(nil)

func (g *MockGateway) SendReviewPrompt(ctx context.Context, reviewerID int64, text, messageKey string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.PromptErr != nil {
		return "", g.PromptErr
	}
	g.Prompts = append(g.Prompts, SentMessage{TargetID: reviewerID, Text: text, MessageKey: messageKey})
	return fmt.Sprintf("prompt-%d", len(g.Prompts)), nil
}

func (g *MockGateway) SendNotification(ctx context.Context, targetID int64, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Notifications = append(g.Notifications, SentMessage{TargetID: targetID, Text: text})
	return nil
}

func (g *MockGateway) SendReply(ctx context.Context, chatID, replyTo int64, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Replies = append(g.Replies, SentMessage{TargetID: chatID, ReplyTo: replyTo, Text: text})
	return nil
}

func (g *MockGateway) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.DeleteErr != nil {
		return g.DeleteErr
	}
	g.Deleted = append(g.Deleted, DeletedMessage{ChatID: chatID, MessageID: messageID})
	return nil
}

func (g *MockGateway) PromptCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Prompts)
}

func (g *MockGateway) DeleteCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Deleted)
}

const (
	TestAdminID     int64 = 100
	TestModeratorID int64 = 200
	TestGroupID     int64 = -1001
)

// Engine backed by in-memory stores and a MockGateway, moderating TestGroupID in the given mode.
func EngineTestFixture(mode modconfig.Mode, goal int) (*Engine, *MockGateway, *modconfig.MemStore) {
	gw := &MockGateway{}
	cfg := modconfig.NewMemStore(modconfig.ModerationConfig{
		AdminID:     TestAdminID,
		ModeratorID: TestModeratorID,
		GroupID:     TestGroupID,
		Mode:        mode,
	})
	eng := &Engine{
		Logger:        slog.Default(),
		Gateway:       gw,
		Config:        cfg,
		Examples:      examplestore.NewMemExampleStore(),
		Reviews:       reviewstore.NewMemReviewStore(1000, time.Hour),
		TrainingGoal:  goal,
		RetryTries:    2,
		RetryInterval: time.Millisecond,
	}
	return eng, gw, cfg
}

// Publishes a trained state with a model that scores every message the same.
func (eng *Engine) SetConstantModel(score float64) {
	eng.state.Store(classifier.NewTrainedState(classifier.NewConstantModel(score), eng.goal(), 0))
}
