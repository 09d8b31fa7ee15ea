// Deployment-level moderation settings: who administers and reviews, which group is moderated, and the operating mode.
//
// The moderation engine only reads configuration. Writes come from administrative tooling (the `topicmod config` commands).
package modconfig

import (
	"context"
	"fmt"
	"strings"
)

type Mode string

const (
	ModeOff  Mode = "off"
	ModeOn   Mode = "on"
	ModeTest Mode = "test"
)

// Parses a mode name. "yes"/"no" are accepted as aliases for on/off.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "no", "":
		return ModeOff, nil
	case "on", "yes":
		return ModeOn, nil
	case "test":
		return ModeTest, nil
	default:
		return "", fmt.Errorf("unknown moderation mode: %q", s)
	}
}

type ModerationConfig struct {
	AdminID     int64 `json:"admin"`
	ModeratorID int64 `json:"moderator"`
	GroupID     int64 `json:"group"`
	Mode        Mode  `json:"mode"`
}

// Admin and moderator are both allowed to label messages.
func (c *ModerationConfig) IsReviewer(userID int64) bool {
	if userID == 0 {
		return false
	}
	return userID == c.ModeratorID || userID == c.AdminID
}

type Store interface {
	GetConfig(ctx context.Context) (ModerationConfig, error)
}

type Writer interface {
	Store
	SetConfig(ctx context.Context, cfg ModerationConfig) error
}
