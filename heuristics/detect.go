// Deterministic, non-learned content checks for chat messages: link and mention detection, and term-frequency cosine similarity.
//
// Everything in this package is a pure function of its inputs, and never fails.
package heuristics

import (
	"regexp"
)

var (
	// http(s) URLs, bare "www." hosts, and messaging deeplink hosts
	linkRegex = regexp.MustCompile(`(?i)(?:https?://\S*|www\.\S*|\b(?:t|telegram|wa)\.me\b\S*|\bdiscord\.gg/\S+|\bchat\.whatsapp\.com/\S+)`)

	// "@handle", but not the domain part of an e-mail address
	mentionRegex = regexp.MustCompile(`(?:^|[^\pL\pN_])@\w+`)
)

type Result struct {
	HasLink    bool `json:"hasLink"`
	HasMention bool `json:"hasMention"`
	// true if any of the individual checks matched
	Prohibited bool `json:"prohibited"`
}

func Detect(text string) Result {
	if text == "" {
		return Result{}
	}
	res := Result{
		HasLink:    linkRegex.MatchString(text),
		HasMention: mentionRegex.MatchString(text),
	}
	res.Prohibited = res.HasLink || res.HasMention
	return res
}

func HasLink(text string) bool {
	return linkRegex.MatchString(text)
}

func HasMention(text string) bool {
	return mentionRegex.MatchString(text)
}
