package moderation

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrSendFailed   = errors.New("gateway send failed")
	ErrDeleteFailed = errors.New("gateway delete failed")
)

// Outbound half of the chat platform. Inbound events are delivered by calling Engine.HandleMessage and Engine.HandleReviewDecision.
type Gateway interface {
	// Sends the text to the reviewer with approve/reject affordances bound to messageKey. Returns a platform identifier for the prompt.
	SendReviewPrompt(ctx context.Context, reviewerID int64, text, messageKey string) (string, error)
	SendNotification(ctx context.Context, targetID int64, text string) error
	SendReply(ctx context.Context, chatID, replyTo int64, text string) error
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
}

type IncomingMessage struct {
	ChatID    int64
	MessageID int64
	SenderID  int64
	// platform username (without "@"), if the sender has one
	SenderName string
	Text       string
}

type ReviewAction string

const (
	ReviewApprove ReviewAction = "approve"
	ReviewReject  ReviewAction = "reject"
)

type ReviewDecision struct {
	Action     ReviewAction
	MessageKey string
	ReviewerID int64
}

type OutcomeStatus string

const (
	// example stored
	OutcomeRecorded OutcomeStatus = "recorded"
	// classifier already trained; example set is frozen
	OutcomeClosed OutcomeStatus = "closed"
	// no pending review for the message key (expired, or lost on restart)
	OutcomeExpired OutcomeStatus = "expired"
	// sender is not allowed to review
	OutcomeDenied OutcomeStatus = "denied"
	OutcomeFailed OutcomeStatus = "failed"
)

// Result of a review decision, for the gateway to render back to the reviewer.
type ReviewOutcome struct {
	Status OutcomeStatus
	Action ReviewAction
	// labeled examples still needed before training
	Remaining int
	// this decision completed training
	Trained bool
}

func (o ReviewOutcome) Message() string {
	switch o.Status {
	case OutcomeRecorded:
		if o.Trained {
			return "Training complete. Moderation is now autonomous."
		}
		if o.Remaining == 0 {
			return "Recorded. Training is pending."
		}
		return fmt.Sprintf("Recorded. Examples remaining until training completes: %d", o.Remaining)
	case OutcomeClosed:
		return "The training window is closed; this decision was not recorded."
	case OutcomeExpired:
		return "This message is no longer awaiting review."
	case OutcomeDenied:
		return "Only the moderator or admin can review messages."
	default:
		return "Something went wrong processing your decision."
	}
}
