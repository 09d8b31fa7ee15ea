package moderation

import (
	"fmt"
	"strings"

	"github.com/topicmod/topicmod/heuristics"
	"github.com/topicmod/topicmod/modconfig"
)

const DefaultDecisionThreshold = 0.5

type Action string

const (
	ActionIgnore  Action = "ignore"
	ActionEnforce Action = "enforce"
	ActionReport  Action = "report"
)

type Policy struct {
	// classifier scores below this are enforced. Zero means DefaultDecisionThreshold.
	Threshold float64
	// optional text that on-topic messages are expected to resemble
	ReferenceText string
	// when positive (and ReferenceText is set), messages less similar than this to the reference are enforced
	MinReferenceSimilarity float64
}

func (p *Policy) threshold() float64 {
	if p.Threshold <= 0 {
		return DefaultDecisionThreshold
	}
	return p.Threshold
}

// Everything known about a message when deciding what to do with it.
type Signals struct {
	Heuristics heuristics.Result
	Links      []string
	// Score is only meaningful if Trained is true
	Trained             bool
	Score               float64
	HasReference        bool
	ReferenceSimilarity float64
}

type Decision struct {
	Action Action
	// what drove the action: "off", "untrained", "classifier", "heuristic", "similarity", "calibration", "unmoderated", "empty", or "" for on-topic messages
	Reason  string
	Signals Signals
}

// Decides what to do with a message under the given mode.
//
// Off never acts. Test never enforces, and always reports. On enforces if the classifier is trained and either scores the message below the threshold, or a heuristic (or the optional similarity gate) flags it. An untrained classifier in On mode is a plain Ignore: the message goes to human review instead.
func Decide(mode modconfig.Mode, sig Signals, pol Policy) Decision {
	switch mode {
	case modconfig.ModeTest:
		return Decision{Action: ActionReport, Reason: "calibration", Signals: sig}
	case modconfig.ModeOn:
		if !sig.Trained {
			return Decision{Action: ActionIgnore, Reason: "untrained", Signals: sig}
		}
		if sig.Heuristics.Prohibited {
			return Decision{Action: ActionEnforce, Reason: "heuristic", Signals: sig}
		}
		if sig.Score < pol.threshold() {
			return Decision{Action: ActionEnforce, Reason: "classifier", Signals: sig}
		}
		if pol.MinReferenceSimilarity > 0 && sig.HasReference && sig.ReferenceSimilarity < pol.MinReferenceSimilarity {
			return Decision{Action: ActionEnforce, Reason: "similarity", Signals: sig}
		}
		return Decision{Action: ActionIgnore, Signals: sig}
	default:
		return Decision{Action: ActionIgnore, Reason: "off", Signals: sig}
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// Human-readable diagnostic for Test mode replies.
func ReportText(d Decision, pol Policy) string {
	sig := d.Signals
	var sb strings.Builder
	sb.WriteString("🔎 Moderation diagnostic (test mode)\n\n")
	if sig.Trained {
		fmt.Fprintf(&sb, "Score: %.4f (threshold %.2f)\n", sig.Score, pol.threshold())
	} else {
		sb.WriteString("Score: n/a (classifier not trained yet)\n")
	}
	fmt.Fprintf(&sb, "Link: %s\n", yesNo(sig.Heuristics.HasLink))
	fmt.Fprintf(&sb, "Mention: %s\n", yesNo(sig.Heuristics.HasMention))
	for _, l := range sig.Links {
		fmt.Fprintf(&sb, "- %s\n", l)
	}
	if sig.HasReference {
		fmt.Fprintf(&sb, "Reference similarity: %.2f%%\n", sig.ReferenceSimilarity*100)
	}
	would := Decide(modconfig.ModeOn, sig, pol)
	switch would.Action {
	case ActionEnforce:
		fmt.Fprintf(&sb, "In On mode: would remove (%s)\n", would.Reason)
	case ActionIgnore:
		if would.Reason == "untrained" {
			sb.WriteString("In On mode: would send for review\n")
		} else {
			sb.WriteString("In On mode: would keep\n")
		}
	}
	return sb.String()
}
