// Short-lived correlation between a message awaiting human review and the prompt sent to the reviewer.
//
// Nothing here needs to be durable: if a pending review is lost (expiry, restart), the reviewer's eventual decision is simply dropped and that message is never labeled.
package reviewstore

import (
	"context"
	"fmt"
	"time"
)

type PendingReview struct {
	MessageKey string    `json:"messageKey"`
	ChatID     int64     `json:"chatId"`
	MessageID  int64     `json:"messageId"`
	SenderID   int64     `json:"senderId"`
	SenderName string    `json:"senderName,omitempty"`
	Text       string    `json:"text"`
	PromptID   string    `json:"promptId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Identifies a message within the moderated deployment.
func MessageKey(chatID, messageID int64) string {
	return fmt.Sprintf("%d:%d", chatID, messageID)
}

type ReviewStore interface {
	// Returns nil (and no error) if there is no pending review for the key.
	Get(ctx context.Context, messageKey string) (*PendingReview, error)
	Put(ctx context.Context, pr PendingReview) error
	Purge(ctx context.Context, messageKey string) error
}
