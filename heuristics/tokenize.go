package heuristics

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonTokenChars = regexp.MustCompile(`[^\pL\pN\s]+`)

// Splits free-form text in to lower-case tokens, with punctuation removed, unicode normalization, and combining marks folded.
//
// Punctuation is dropped rather than treated as a separator, so "don't" becomes a single "dont" token. Returns an empty (non-nil) slice for empty or whitespace-only text.
func TokenizeText(text string) []string {
	// the transformer is stateful, so it gets re-created on every call
	normFunc := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	bare := strings.ToLower(nonTokenChars.ReplaceAllString(text, ""))
	normed, _, err := transform.String(normFunc, bare)
	if err != nil {
		slog.Warn("unicode normalization error", "err", err)
		normed = bare
	}
	out := strings.Fields(normed)
	if out == nil {
		return []string{}
	}
	return out
}

// Collapses any run of whitespace to a single space, and trims the ends.
func NormalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
