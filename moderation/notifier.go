package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/topicmod/topicmod/util"
)

// Interface for a type that can send operator notifications about the engine's actions (out of band from the chat platform)
type Notifier interface {
	SendTrainingComplete(ctx context.Context, exampleCount int) error
	SendEnforcement(ctx context.Context, msg IncomingMessage, d Decision) error
}

type SlackNotifier struct {
	SlackWebhookURL string
	// defaults to util.RobustHTTPClient()
	Client *http.Client
}

var _ Notifier = (*SlackNotifier)(nil)

func (n *SlackNotifier) SendTrainingComplete(ctx context.Context, exampleCount int) error {
	msg := fmt.Sprintf("🎓 topicmod training complete\nClassifier trained on `%d` labeled examples; moderation is now autonomous.\n", exampleCount)
	return n.sendSlackMsg(ctx, msg)
}

func (n *SlackNotifier) SendEnforcement(ctx context.Context, msg IncomingMessage, d Decision) error {
	body := "⚠️ topicmod removed a message ⚠️\n"
	body += fmt.Sprintf("chat `%d` / message `%d` / sender `%d`", msg.ChatID, msg.MessageID, msg.SenderID)
	if msg.SenderName != "" {
		body += fmt.Sprintf(" (@%s)", msg.SenderName)
	}
	body += "\n"
	body += fmt.Sprintf("Reason: `%s`", d.Reason)
	if d.Signals.Trained {
		body += fmt.Sprintf(" / score `%.3f`", d.Signals.Score)
	}
	body += "\n"
	return n.sendSlackMsg(ctx, body)
}

type SlackWebhookBody struct {
	Text string `json:"text"`
}

// Sends a simple slack message to a channel via "incoming webhook".
//
// The slack incoming webhook must be already configured in the slack workplace.
func (n *SlackNotifier) sendSlackMsg(ctx context.Context, msg string) error {
	body, err := json.Marshal(SlackWebhookBody{Text: msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.SlackWebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	client := n.Client
	if client == nil {
		client = util.RobustHTTPClient()
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	buf.ReadFrom(resp.Body)
	if resp.StatusCode != 200 || buf.String() != "ok" {
		return fmt.Errorf("failed slack webhook POST request. status=%d", resp.StatusCode)
	}
	return nil
}
