package moderation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/topicmod/topicmod/classifier"
	"github.com/topicmod/topicmod/examplestore"
	"github.com/topicmod/topicmod/features"
	"github.com/topicmod/topicmod/modconfig"
	"github.com/topicmod/topicmod/reviewstore"

	"github.com/stretchr/testify/assert"
)

func groupMessage(id int64, text string) IncomingMessage {
	return IncomingMessage{
		ChatID:     TestGroupID,
		MessageID:  id,
		SenderID:   5000 + id,
		SenderName: fmt.Sprintf("user%d", id),
		Text:       text,
	}
}

func TestEngineIgnoresOutsideGroup(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, gw, _ := EngineTestFixture(modconfig.ModeOn, 10)
	assert.NoError(eng.Load(ctx))

	msg := groupMessage(1, "hello")
	msg.ChatID = 12345
	d, err := eng.HandleMessage(ctx, msg)
	assert.NoError(err)
	assert.Equal(ActionIgnore, d.Action)
	assert.Equal("unmoderated", d.Reason)

	d, err = eng.HandleMessage(ctx, groupMessage(2, "   \n "))
	assert.NoError(err)
	assert.Equal("empty", d.Reason)
	assert.Equal(0, gw.PromptCount())
}

func TestEngineOffMode(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, gw, _ := EngineTestFixture(modconfig.ModeOff, 10)
	assert.NoError(eng.Load(ctx))

	d, err := eng.HandleMessage(ctx, groupMessage(1, "visit www.example.com"))
	assert.NoError(err)
	assert.Equal(ActionIgnore, d.Action)
	assert.Equal(0, gw.PromptCount())
	assert.Equal(0, gw.DeleteCount())
}

func TestEngineUntrainedRoutesToReview(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, gw, _ := EngineTestFixture(modconfig.ModeOn, 10)
	assert.NoError(eng.Load(ctx))

	d, err := eng.HandleMessage(ctx, groupMessage(7, "selling my bike, barely used"))
	assert.NoError(err)
	assert.Equal(ActionIgnore, d.Action)
	assert.Equal("untrained", d.Reason)

	assert.Equal(1, gw.PromptCount())
	prompt := gw.Prompts[0]
	assert.Equal(TestModeratorID, prompt.TargetID)
	assert.Equal(reviewstore.MessageKey(TestGroupID, 7), prompt.MessageKey)
	assert.Contains(prompt.Text, "selling my bike")

	pr, err := eng.Reviews.Get(ctx, prompt.MessageKey)
	assert.NoError(err)
	if assert.NotNil(pr) {
		assert.Equal("prompt-1", pr.PromptID)
		assert.Equal(int64(5007), pr.SenderID)
	}
}

func TestEngineReviewPromptFailure(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, gw, _ := EngineTestFixture(modconfig.ModeOn, 10)
	assert.NoError(eng.Load(ctx))
	gw.PromptErr = errors.New("platform unavailable")

	d, err := eng.HandleMessage(ctx, groupMessage(1, "selling my bike"))
	assert.NoError(err)
	assert.Equal(ActionIgnore, d.Action)

	// pending review is dropped, so a late decision is a no-op
	pr, err := eng.Reviews.Get(ctx, reviewstore.MessageKey(TestGroupID, 1))
	assert.NoError(err)
	assert.Nil(pr)
}

func TestEngineTestModeNeverDeletes(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, gw, _ := EngineTestFixture(modconfig.ModeTest, 10)
	assert.NoError(eng.Load(ctx))

	// untrained: report, and still collect a label
	d, err := eng.HandleMessage(ctx, groupMessage(1, "cheap followers at t.me/spam"))
	assert.NoError(err)
	assert.Equal(ActionReport, d.Action)
	assert.Equal(1, gw.PromptCount())

	eng.SetConstantModel(0.1)
	d, err = eng.HandleMessage(ctx, groupMessage(2, "cheap followers at t.me/spam @spammer"))
	assert.NoError(err)
	assert.Equal(ActionReport, d.Action)
	assert.Equal(1, gw.PromptCount())

	assert.Equal(0, gw.DeleteCount())
	assert.Len(gw.Replies, 2)
	assert.Equal(int64(2), gw.Replies[1].ReplyTo)
	assert.Contains(gw.Replies[1].Text, "Score: 0.1000")
	assert.Contains(gw.Replies[1].Text, "Mention: yes")
	assert.Contains(gw.Replies[1].Text, "https://t.me/spam")
}

func TestEngineEnforce(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, gw, _ := EngineTestFixture(modconfig.ModeOn, 10)
	assert.NoError(eng.Load(ctx))

	eng.SetConstantModel(0.3)
	d, err := eng.HandleMessage(ctx, groupMessage(1, "totally unrelated chatter"))
	assert.NoError(err)
	assert.Equal(ActionEnforce, d.Action)
	assert.Equal("classifier", d.Reason)

	eng.SetConstantModel(0.9)
	d, err = eng.HandleMessage(ctx, groupMessage(2, "nice bike, more at www.example.com"))
	assert.NoError(err)
	assert.Equal(ActionEnforce, d.Action)
	assert.Equal("heuristic", d.Reason)

	d, err = eng.HandleMessage(ctx, groupMessage(3, "nice bike, what size is the frame?"))
	assert.NoError(err)
	assert.Equal(ActionIgnore, d.Action)

	assert.Equal(2, gw.DeleteCount())
	assert.Equal(DeletedMessage{ChatID: TestGroupID, MessageID: 1}, gw.Deleted[0])
	assert.Len(gw.Notifications, 2)
	assert.Equal(int64(5001), gw.Notifications[0].TargetID)
	assert.Contains(gw.Notifications[0].Text, "@user1")
	assert.Equal(0, gw.PromptCount())
	assert.Empty(gw.Replies)
}

func TestEngineDeleteFailureSkipsNotice(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, gw, _ := EngineTestFixture(modconfig.ModeOn, 10)
	assert.NoError(eng.Load(ctx))
	eng.SetConstantModel(0.1)
	gw.DeleteErr = PermanentError(errors.New("message to delete not found"))

	d, err := eng.HandleMessage(ctx, groupMessage(1, "off topic"))
	assert.NoError(err)
	assert.Equal(ActionEnforce, d.Action)
	assert.Equal(0, gw.DeleteCount())
	assert.Empty(gw.Notifications)
}

func TestReviewDecisionPermissions(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _, _ := EngineTestFixture(modconfig.ModeOn, 10)
	assert.NoError(eng.Load(ctx))

	_, err := eng.HandleMessage(ctx, groupMessage(1, "selling my bike"))
	assert.NoError(err)
	key := reviewstore.MessageKey(TestGroupID, 1)

	out, err := eng.HandleReviewDecision(ctx, ReviewDecision{Action: ReviewApprove, MessageKey: key, ReviewerID: 999})
	assert.NoError(err)
	assert.Equal(OutcomeDenied, out.Status)

	out, err = eng.HandleReviewDecision(ctx, ReviewDecision{Action: ReviewApprove, MessageKey: "1:1", ReviewerID: TestModeratorID})
	assert.NoError(err)
	assert.Equal(OutcomeExpired, out.Status)

	// admin may review as well as the moderator
	out, err = eng.HandleReviewDecision(ctx, ReviewDecision{Action: ReviewApprove, MessageKey: key, ReviewerID: TestAdminID})
	assert.NoError(err)
	assert.Equal(OutcomeRecorded, out.Status)
	assert.Equal(9, out.Remaining)

	out, err = eng.HandleReviewDecision(ctx, ReviewDecision{Action: ReviewAction("maybe"), MessageKey: key, ReviewerID: TestAdminID})
	assert.Error(err)
	assert.Equal(OutcomeFailed, out.Status)

	count, err := eng.Examples.Count(ctx)
	assert.NoError(err)
	assert.Equal(1, count)
}

func TestReviewDecisionSameKeyReplaces(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _, _ := EngineTestFixture(modconfig.ModeOn, 10)
	assert.NoError(eng.Load(ctx))

	_, err := eng.HandleMessage(ctx, groupMessage(1, "selling my bike"))
	assert.NoError(err)
	key := reviewstore.MessageKey(TestGroupID, 1)

	out, err := eng.HandleReviewDecision(ctx, ReviewDecision{Action: ReviewApprove, MessageKey: key, ReviewerID: TestModeratorID})
	assert.NoError(err)
	assert.Equal(9, out.Remaining)

	out, err = eng.HandleReviewDecision(ctx, ReviewDecision{Action: ReviewReject, MessageKey: key, ReviewerID: TestModeratorID})
	assert.NoError(err)
	assert.Equal(OutcomeRecorded, out.Status)
	assert.Equal(9, out.Remaining)

	all, err := eng.Examples.All(ctx)
	assert.NoError(err)
	if assert.Len(all, 1) {
		assert.Equal(examplestore.LabelRejected, all[0].Label)
		assert.Equal(examplestore.ExampleKey(key, TestModeratorID), all[0].Key)
		assert.Equal("selling my bike", all[0].Features.Text)
	}
}

// approve/reject/approve on three messages trains the classifier; the next message is judged by inference
func TestTrainingGoalScenario(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, gw, _ := EngineTestFixture(modconfig.ModeOn, 3)
	assert.NoError(eng.Load(ctx))

	texts := []string{
		"selling my road bike, good condition",
		"buy cheap followers now",
		"anyone riding the trail this weekend?",
	}
	actions := []ReviewAction{ReviewApprove, ReviewReject, ReviewApprove}
	for i, txt := range texts {
		_, err := eng.HandleMessage(ctx, groupMessage(int64(i+1), txt))
		assert.NoError(err)
	}
	assert.Equal(3, gw.PromptCount())

	var last ReviewOutcome
	for i, act := range actions {
		out, err := eng.HandleReviewDecision(ctx, ReviewDecision{
			Action:     act,
			MessageKey: gw.Prompts[i].MessageKey,
			ReviewerID: TestModeratorID,
		})
		assert.NoError(err)
		assert.Equal(OutcomeRecorded, out.Status)
		assert.Equal(2-i, out.Remaining)
		last = out
	}
	assert.True(last.Trained)
	assert.True(eng.State().Trained)
	assert.Equal(3, eng.State().ExampleCount)

	// moderator and admin are both told
	assert.Len(gw.Notifications, 2)
	assert.Equal(TestModeratorID, gw.Notifications[0].TargetID)
	assert.Equal(TestAdminID, gw.Notifications[1].TargetID)

	d, err := eng.HandleMessage(ctx, groupMessage(4, "selling a mountain bike"))
	assert.NoError(err)
	assert.True(d.Signals.Trained)
	assert.NotEqual("untrained", d.Reason)
	assert.Equal(3, gw.PromptCount())

	// training window is closed
	out, err := eng.HandleReviewDecision(ctx, ReviewDecision{Action: ReviewReject, MessageKey: gw.Prompts[0].MessageKey, ReviewerID: TestModeratorID})
	assert.NoError(err)
	assert.Equal(OutcomeClosed, out.Status)
	count, err := eng.Examples.Count(ctx)
	assert.NoError(err)
	assert.Equal(3, count)
}

func TestTrainingFailureStaysUntrained(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, gw, _ := EngineTestFixture(modconfig.ModeOn, 2)
	assert.NoError(eng.Load(ctx))

	for i := int64(1); i <= 2; i++ {
		_, err := eng.HandleMessage(ctx, groupMessage(i, fmt.Sprintf("on topic message %d", i)))
		assert.NoError(err)
		out, err := eng.HandleReviewDecision(ctx, ReviewDecision{Action: ReviewApprove, MessageKey: gw.Prompts[i-1].MessageKey, ReviewerID: TestModeratorID})
		assert.NoError(err)
		assert.Equal(OutcomeRecorded, out.Status)
		assert.False(out.Trained)
	}
	// only one label class present
	assert.False(eng.State().Trained)
}

func TestConcurrentDecisionsTrainOnce(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _, _ := EngineTestFixture(modconfig.ModeOn, 5)
	assert.NoError(eng.Load(ctx))

	var runs atomic.Int32
	eng.Trainer = func(exs []examplestore.LabeledExample, opts classifier.Options) (*classifier.Model, error) {
		runs.Add(1)
		return classifier.NewConstantModel(0.8), nil
	}

	for i := 0; i < 4; i++ {
		_, err := eng.Examples.Upsert(ctx, examplestore.LabeledExample{
			Key:      fmt.Sprintf("seed/%d", i),
			Features: features.Extract("seed example"),
			Label:    examplestore.LabelAppropriate,
		})
		assert.NoError(err)
	}

	const n = 8
	for i := int64(1); i <= n; i++ {
		assert.NoError(eng.Reviews.Put(ctx, reviewstore.PendingReview{
			MessageKey: reviewstore.MessageKey(TestGroupID, i),
			ChatID:     TestGroupID,
			MessageID:  i,
			Text:       fmt.Sprintf("message number %d", i),
		}))
	}

	var wg sync.WaitGroup
	outcomes := make([]ReviewOutcome, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := eng.HandleReviewDecision(ctx, ReviewDecision{
				Action:     ReviewReject,
				MessageKey: reviewstore.MessageKey(TestGroupID, int64(i+1)),
				ReviewerID: TestModeratorID,
			})
			assert.NoError(err)
			outcomes[i] = out
		}(i)
	}
	wg.Wait()

	assert.Equal(int32(1), runs.Load())
	trained := 0
	for _, out := range outcomes {
		if out.Trained {
			trained++
		} else {
			assert.Equal(OutcomeClosed, out.Status)
		}
	}
	assert.Equal(1, trained)

	count, err := eng.Examples.Count(ctx)
	assert.NoError(err)
	assert.Equal(5, count)
}

func TestEngineReset(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, gw, _ := EngineTestFixture(modconfig.ModeOn, 10)
	assert.NoError(eng.Load(ctx))

	_, err := eng.HandleMessage(ctx, groupMessage(1, "selling my bike"))
	assert.NoError(err)
	_, err = eng.HandleReviewDecision(ctx, ReviewDecision{Action: ReviewApprove, MessageKey: gw.Prompts[0].MessageKey, ReviewerID: TestModeratorID})
	assert.NoError(err)
	eng.SetConstantModel(0.7)

	assert.NoError(eng.Reset(ctx))
	assert.False(eng.State().Trained)
	assert.Equal(10, eng.State().TrainingGoal)
	count, err := eng.Examples.Count(ctx)
	assert.NoError(err)
	assert.Equal(0, count)
}

func featuresOf(text string) features.FeatureVector {
	return features.Extract(text)
}
