package telegram

import (
	"fmt"
	"strings"

	"github.com/topicmod/topicmod/moderation"
)

// Telegram limits callback data to 64 bytes
const maxCallbackData = 64

func encodeCallback(action moderation.ReviewAction, messageKey string) string {
	return string(action) + "|" + messageKey
}

func decodeCallback(data string) (moderation.ReviewAction, string, error) {
	action, key, ok := strings.Cut(data, "|")
	if !ok || key == "" {
		return "", "", fmt.Errorf("malformed callback data: %q", data)
	}
	switch moderation.ReviewAction(action) {
	case moderation.ReviewApprove, moderation.ReviewReject:
		return moderation.ReviewAction(action), key, nil
	default:
		return "", "", fmt.Errorf("unknown review action in callback data: %q", action)
	}
}
