// Adaptive moderation for a single chat group.
//
// The Engine routes group messages to a human reviewer until enough labeled examples have been collected, trains a classifier on them, and from then on removes off-topic messages autonomously (depending on the configured mode).
package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/topicmod/topicmod/classifier"
	"github.com/topicmod/topicmod/examplestore"
	"github.com/topicmod/topicmod/features"
	"github.com/topicmod/topicmod/heuristics"
	"github.com/topicmod/topicmod/modconfig"
	"github.com/topicmod/topicmod/persist"
	"github.com/topicmod/topicmod/reviewstore"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("topicmod/moderation")

// Runtime for handling group messages and reviewer decisions, and for managing classifier state.
//
// Gateway, Config, Examples and Reviews must all be set. Call Load before handling events.
type Engine struct {
	Logger   *slog.Logger
	Gateway  Gateway
	Config   modconfig.Store
	Examples examplestore.ExampleStore
	Reviews  reviewstore.ReviewStore
	// durable storage for examples and classifier state (optional)
	Persist persist.Store
	// out-of-band operator notifications (optional)
	Notifier Notifier

	Policy          Policy
	TrainingOptions classifier.Options
	// number of labeled examples which triggers training. Zero means use the loaded state's goal.
	TrainingGoal int
	// defaults to classifier.Train
	Trainer func([]examplestore.LabeledExample, classifier.Options) (*classifier.Model, error)

	RetryTries    uint
	RetryInterval time.Duration

	state   atomic.Pointer[classifier.State]
	trainMu sync.Mutex
	flushMu sync.Mutex

	dirtyOnce sync.Once
	dirty     chan struct{}
}

// Restores examples and classifier state from persistence. Load failures are logged and the engine starts empty.
func (eng *Engine) Load(ctx context.Context) error {
	goal := eng.goal()
	var st *classifier.State
	if eng.Persist != nil {
		loaded, err := eng.Persist.LoadClassifierState(ctx)
		if err != nil {
			eng.Logger.Error("failed to load classifier state, starting untrained", "err", err)
			persistFailures.WithLabelValues("load_state").Inc()
		} else {
			st = loaded
		}

		exs, err := eng.Persist.LoadExamples(ctx)
		if err != nil {
			eng.Logger.Error("failed to load labeled examples, starting empty", "err", err)
			persistFailures.WithLabelValues("load_examples").Inc()
		}
		for _, ex := range exs {
			if _, err := eng.Examples.Upsert(ctx, ex); err != nil {
				return fmt.Errorf("restoring example %s: %w", ex.Key, err)
			}
		}
	}
	if st == nil {
		st = classifier.NewState(goal)
	} else if eng.TrainingGoal > 0 {
		st.TrainingGoal = eng.TrainingGoal
	}
	eng.state.Store(st)

	count, err := eng.Examples.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting examples: %w", err)
	}
	exampleCount.Set(float64(count))
	eng.Logger.Info("moderation state loaded", "trained", st.Trained, "examples", count, "goal", st.TrainingGoal)

	if !st.Trained && count >= st.TrainingGoal {
		eng.trainMu.Lock()
		defer eng.trainMu.Unlock()
		if _, err := eng.trainLocked(ctx, st.TrainingGoal); err != nil {
			eng.Logger.Warn("training on restored examples failed", "err", err)
		}
	}
	return nil
}

// Currently published classifier state. Never nil.
func (eng *Engine) State() *classifier.State {
	if st := eng.state.Load(); st != nil {
		return st
	}
	return classifier.NewState(eng.goal())
}

func (eng *Engine) goal() int {
	if eng.TrainingGoal > 0 {
		return eng.TrainingGoal
	}
	if st := eng.state.Load(); st != nil && st.TrainingGoal > 0 {
		return st.TrainingGoal
	}
	return classifier.DefaultTrainingGoal
}

// Computes heuristic, classifier and similarity signals for a message text.
func (eng *Engine) Signals(text string) (Signals, features.FeatureVector) {
	fv := features.Extract(text)
	sig := Signals{
		Heuristics: heuristics.Detect(fv.Text),
	}
	for _, l := range heuristics.ExtractLinks(fv.Text) {
		sig.Links = append(sig.Links, heuristics.NormalizeURL(l))
	}
	sig.Score, sig.Trained = eng.state.Load().Infer(fv)
	if eng.Policy.ReferenceText != "" {
		sig.HasReference = true
		sig.ReferenceSimilarity = heuristics.Similarity(fv.Text, eng.Policy.ReferenceText)
	}
	return sig, fv
}

// Handles a message from a chat. Messages outside the moderated group are ignored.
func (eng *Engine) HandleMessage(ctx context.Context, msg IncomingMessage) (Decision, error) {
	messageKey := reviewstore.MessageKey(msg.ChatID, msg.MessageID)
	logger := eng.Logger.With("messageKey", messageKey)

	// similar to an HTTP server, we want to recover any panics from message handling
	defer func() {
		if r := recover(); r != nil {
			logger.Error("moderation message handling exception", "err", r, "stage", "message")
		}
	}()

	ctx, span := tracer.Start(ctx, "HandleMessage", trace.WithAttributes(attribute.String("messageKey", messageKey)))
	defer span.End()

	start := time.Now()
	defer func() {
		messageProcessDuration.Observe(time.Since(start).Seconds())
	}()

	cfg, err := eng.Config.GetConfig(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("reading moderation config: %w", err)
	}
	if cfg.GroupID == 0 || msg.ChatID != cfg.GroupID {
		return Decision{Action: ActionIgnore, Reason: "unmoderated"}, nil
	}
	if heuristics.NormalizeWhitespace(msg.Text) == "" {
		return Decision{Action: ActionIgnore, Reason: "empty"}, nil
	}
	messagesProcessed.WithLabelValues(string(cfg.Mode)).Inc()

	sig, _ := eng.Signals(msg.Text)
	if cfg.Mode != modconfig.ModeOff && !sig.Trained {
		if err := eng.requestReview(ctx, &cfg, msg, messageKey); err != nil {
			logger.Error("failed to request review", "err", err, "stage", "review_prompt")
		}
	}

	d := Decide(cfg.Mode, sig, eng.Policy)
	decisionCount.WithLabelValues(string(d.Action), d.Reason).Inc()
	span.SetAttributes(attribute.String("action", string(d.Action)))

	switch d.Action {
	case ActionEnforce:
		logger.Info("enforcing on message", "reason", d.Reason, "score", d.Signals.Score, "senderID", msg.SenderID)
		eng.enforce(ctx, logger, msg, d)
	case ActionReport:
		_, err := retryGateway(ctx, eng, func() (struct{}, error) {
			return struct{}{}, eng.Gateway.SendReply(ctx, msg.ChatID, msg.MessageID, ReportText(d, eng.Policy))
		})
		if err != nil {
			gatewayFailures.WithLabelValues("reply").Inc()
			logger.Error("failed to send diagnostic reply", "err", fmt.Errorf("%w: %w", ErrSendFailed, err), "stage", "report")
		}
	}
	return d, nil
}

// Deletes the message, then tells the sender why. If the delete fails the sender is not notified.
func (eng *Engine) enforce(ctx context.Context, logger *slog.Logger, msg IncomingMessage, d Decision) {
	_, err := retryGateway(ctx, eng, func() (struct{}, error) {
		return struct{}{}, eng.Gateway.DeleteMessage(ctx, msg.ChatID, msg.MessageID)
	})
	if err != nil {
		gatewayFailures.WithLabelValues("delete").Inc()
		logger.Error("failed to delete message", "err", fmt.Errorf("%w: %w", ErrDeleteFailed, err), "stage", "enforce")
		return
	}

	_, err = retryGateway(ctx, eng, func() (struct{}, error) {
		return struct{}{}, eng.Gateway.SendNotification(ctx, msg.SenderID, removalNotice(msg.SenderName))
	})
	if err != nil {
		gatewayFailures.WithLabelValues("notify").Inc()
		logger.Warn("failed to notify sender of removal", "err", fmt.Errorf("%w: %w", ErrSendFailed, err), "stage", "enforce")
	}

	if eng.Notifier != nil {
		if err := eng.Notifier.SendEnforcement(ctx, msg, d); err != nil {
			logger.Error("failed to send enforcement notification", "err", err)
		}
	}
}

func removalNotice(senderName string) string {
	if senderName == "" {
		return "Your message was removed because it is off-topic for the group."
	}
	return fmt.Sprintf("@%s, your message was removed because it is off-topic for the group.", senderName)
}
