package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/topicmod/topicmod/classifier"
	"github.com/topicmod/topicmod/examplestore"
	"github.com/topicmod/topicmod/features"
	"github.com/topicmod/topicmod/modconfig"
	"github.com/topicmod/topicmod/reviewstore"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const reviewPromptText = "Is this message appropriate for the group?\n\n"

const trainingCompleteText = "Training complete. The classifier now moderates the group autonomously."

// Records the message as pending and asks the moderator (or the admin, if no moderator is set) to label it.
func (eng *Engine) requestReview(ctx context.Context, cfg *modconfig.ModerationConfig, msg IncomingMessage, messageKey string) error {
	reviewerID := cfg.ModeratorID
	if reviewerID == 0 {
		reviewerID = cfg.AdminID
	}
	if reviewerID == 0 {
		eng.Logger.Warn("no reviewer configured, message not sent for review", "messageKey", messageKey)
		return nil
	}

	pr := reviewstore.PendingReview{
		MessageKey: messageKey,
		ChatID:     msg.ChatID,
		MessageID:  msg.MessageID,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Text:       msg.Text,
		CreatedAt:  time.Now().UTC(),
	}
	// stored before prompting, so a fast reviewer never races the write
	if err := eng.Reviews.Put(ctx, pr); err != nil {
		return fmt.Errorf("storing pending review: %w", err)
	}

	promptID, err := retryGateway(ctx, eng, func() (string, error) {
		return eng.Gateway.SendReviewPrompt(ctx, reviewerID, reviewPromptText+msg.Text, messageKey)
	})
	if err != nil {
		gatewayFailures.WithLabelValues("review_prompt").Inc()
		if perr := eng.Reviews.Purge(ctx, messageKey); perr != nil {
			eng.Logger.Warn("failed to purge pending review", "messageKey", messageKey, "err", perr)
		}
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	reviewPromptsSent.Inc()

	pr.PromptID = promptID
	if err := eng.Reviews.Put(ctx, pr); err != nil {
		return fmt.Errorf("updating pending review: %w", err)
	}
	eng.Logger.Debug("message sent for review", "messageKey", messageKey, "reviewerID", reviewerID, "promptID", promptID)
	return nil
}

// Handles an approve/reject decision from a reviewer. The returned outcome is meant to be rendered back to the reviewer; an error is only returned for failures the reviewer can't act on.
func (eng *Engine) HandleReviewDecision(ctx context.Context, rd ReviewDecision) (out ReviewOutcome, err error) {
	logger := eng.Logger.With("messageKey", rd.MessageKey, "reviewerID", rd.ReviewerID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("moderation review handling exception", "err", r, "stage", "review_decision")
			out = ReviewOutcome{Status: OutcomeFailed, Action: rd.Action}
			err = fmt.Errorf("review decision panic: %v", r)
		}
		reviewDecisionCount.WithLabelValues(string(out.Status)).Inc()
	}()

	ctx, span := tracer.Start(ctx, "HandleReviewDecision", trace.WithAttributes(
		attribute.String("messageKey", rd.MessageKey),
		attribute.String("action", string(rd.Action)),
	))
	defer span.End()

	out = ReviewOutcome{Action: rd.Action}

	cfg, err := eng.Config.GetConfig(ctx)
	if err != nil {
		out.Status = OutcomeFailed
		return out, fmt.Errorf("reading moderation config: %w", err)
	}
	if !cfg.IsReviewer(rd.ReviewerID) {
		logger.Warn("review decision from non-reviewer ignored")
		out.Status = OutcomeDenied
		return out, nil
	}

	var label examplestore.Label
	switch rd.Action {
	case ReviewApprove:
		label = examplestore.LabelAppropriate
	case ReviewReject:
		label = examplestore.LabelRejected
	default:
		out.Status = OutcomeFailed
		return out, fmt.Errorf("unknown review action: %q", rd.Action)
	}

	if eng.State().Trained {
		out.Status = OutcomeClosed
		return out, nil
	}

	pr, err := eng.Reviews.Get(ctx, rd.MessageKey)
	if err != nil {
		out.Status = OutcomeFailed
		return out, fmt.Errorf("fetching pending review: %w", err)
	}
	if pr == nil {
		logger.Info("review decision for unknown or expired message")
		out.Status = OutcomeExpired
		return out, nil
	}

	ex := examplestore.LabeledExample{
		Key:        examplestore.ExampleKey(rd.MessageKey, rd.ReviewerID),
		Features:   features.Extract(pr.Text),
		Label:      label,
		MessageKey: rd.MessageKey,
		ReviewerID: rd.ReviewerID,
		CreatedAt:  time.Now().UTC(),
	}

	trained, count, err := eng.recordExample(ctx, logger, ex)
	if err != nil {
		out.Status = OutcomeFailed
		return out, err
	}
	if trained == nil && eng.State().Trained {
		// another decision completed training while this one waited
		out.Status = OutcomeClosed
		return out, nil
	}

	out.Status = OutcomeRecorded
	out.Remaining = max(eng.goal()-count, 0)
	if trained != nil {
		out.Trained = true
		out.Remaining = 0
		eng.announceTraining(ctx, logger, &cfg, trained)
	}
	logger.Info("review decision recorded", "label", label, "count", count, "remaining", out.Remaining)
	return out, nil
}

// Upserts the example and trains if the goal was reached. Returns the newly published state, if training happened.
func (eng *Engine) recordExample(ctx context.Context, logger *slog.Logger, ex examplestore.LabeledExample) (*classifier.State, int, error) {
	eng.trainMu.Lock()
	defer eng.trainMu.Unlock()

	if eng.State().Trained {
		return nil, 0, nil
	}

	count, err := eng.Examples.Upsert(ctx, ex)
	if err != nil {
		return nil, 0, fmt.Errorf("storing labeled example: %w", err)
	}
	exampleCount.Set(float64(count))
	eng.markDirty()

	goal := eng.goal()
	if count < goal {
		return nil, count, nil
	}
	st, err := eng.trainLocked(ctx, goal)
	if err != nil {
		// stays untrained; the next decision retries
		logger.Warn("training failed", "err", err, "stage", "train", "count", count)
		return nil, count, nil
	}
	return st, count, nil
}

// Trains on the full example set and publishes the result. Caller must hold trainMu.
func (eng *Engine) trainLocked(ctx context.Context, goal int) (*classifier.State, error) {
	_, span := tracer.Start(ctx, "Train", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	all, err := eng.Examples.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching labeled examples: %w", err)
	}

	trainer := eng.Trainer
	if trainer == nil {
		trainer = classifier.Train
	}
	opts := eng.TrainingOptions
	if opts.Epochs == 0 {
		opts = classifier.DefaultOptions()
	}

	start := time.Now()
	model, err := trainer(all, opts)
	trainingDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		result := "failed"
		if errors.Is(err, classifier.ErrInsufficientData) {
			result = "insufficient_data"
		}
		trainingRuns.WithLabelValues(result).Inc()
		return nil, err
	}
	trainingRuns.WithLabelValues("ok").Inc()

	st := classifier.NewTrainedState(model, goal, len(all))
	eng.state.Store(st)
	eng.markDirty()
	eng.Logger.Info("classifier trained", "examples", len(all), "duration", time.Since(start))
	return st, nil
}

// Tells the reviewers (and the operator notifier) that autonomous moderation has begun.
func (eng *Engine) announceTraining(ctx context.Context, logger *slog.Logger, cfg *modconfig.ModerationConfig, st *classifier.State) {
	targets := []int64{cfg.ModeratorID}
	if cfg.AdminID != cfg.ModeratorID {
		targets = append(targets, cfg.AdminID)
	}
	for _, id := range targets {
		if id == 0 {
			continue
		}
		_, err := retryGateway(ctx, eng, func() (struct{}, error) {
			return struct{}{}, eng.Gateway.SendNotification(ctx, id, trainingCompleteText)
		})
		if err != nil {
			gatewayFailures.WithLabelValues("notify").Inc()
			logger.Error("failed to send training notification", "err", fmt.Errorf("%w: %w", ErrSendFailed, err), "targetID", id)
		}
	}
	if eng.Notifier != nil {
		if err := eng.Notifier.SendTrainingComplete(ctx, st.ExampleCount); err != nil {
			logger.Error("failed to send training notification", "err", err)
		}
	}
}

// Drops all labeled examples and returns to the untrained state, then saves synchronously.
func (eng *Engine) Reset(ctx context.Context) error {
	eng.trainMu.Lock()
	if err := eng.Examples.Clear(ctx); err != nil {
		eng.trainMu.Unlock()
		return fmt.Errorf("clearing labeled examples: %w", err)
	}
	eng.state.Store(classifier.NewState(eng.goal()))
	exampleCount.Set(0)
	eng.trainMu.Unlock()

	eng.Logger.Info("moderation state reset")
	return eng.Flush(ctx)
}
