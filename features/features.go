// Feature extraction for chat message text.
//
// A FeatureVector is a pure function of the message text, and is the only input the classifier sees. Keeping extraction in one place means classifier implementations can be swapped without touching the review workflow.
package features

import (
	"unicode"
	"unicode/utf8"

	"github.com/rivo/uniseg"

	"github.com/topicmod/topicmod/heuristics"
)

type FeatureVector struct {
	// message text with whitespace collapsed and trimmed
	Text         string `json:"text"`
	Length       int    `json:"length"`
	TokenCount   int    `json:"tokenCount"`
	HasLink      bool   `json:"hasLink"`
	HasMention   bool   `json:"hasMention"`
	HasUppercase bool   `json:"hasUppercase"`
	EmojiCount   int    `json:"emojiCount"`
}

// Tokens of the normalized text, as used for similarity and for the classifier's bag-of-words.
func (fv *FeatureVector) Tokens() []string {
	return heuristics.TokenizeText(fv.Text)
}

func Extract(text string) FeatureVector {
	norm := heuristics.NormalizeWhitespace(text)
	res := heuristics.Detect(norm)
	return FeatureVector{
		Text:         norm,
		Length:       utf8.RuneCountInString(norm),
		TokenCount:   len(heuristics.TokenizeText(norm)),
		HasLink:      res.HasLink,
		HasMention:   res.HasMention,
		HasUppercase: hasUppercase(norm),
		EmojiCount:   countEmoji(norm),
	}
}

func hasUppercase(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

// counts grapheme clusters starting with a pictographic rune
func countEmoji(s string) int {
	n := 0
	gr := uniseg.NewGraphemes(s)
	for gr.Next() {
		first := gr.Runes()[0]
		if (first >= 0x1F000 && first <= 0x1FFFF) || (first >= 0x2600 && first <= 0x27BF) {
			n++
		}
	}
	return n
}
