package heuristics

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/purell"
)

var trackingParams = []string{
	"fbclid",
	"gclid",
	"utm_campaign",
	"utm_content",
	"utm_id",
	"utm_medium",
	"utm_source",
	"utm_term",
}

// Returns every link-like substring of the text, in order of appearance. Trailing sentence punctuation is trimmed.
func ExtractLinks(text string) []string {
	found := linkRegex.FindAllString(text, -1)
	out := make([]string, 0, len(found))
	for _, l := range found {
		l = strings.TrimRight(l, ".,;:!?)\"'")
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

// Aggressively normalizes a link for display and comparison. Bare hosts ("www.example.com", "t.me/chan") get an https scheme. The result might not be functional; on any parse failure the input is returned unchanged.
func NormalizeURL(raw string) string {
	s := raw
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	clean, err := purell.NormalizeURLString(s, purell.FlagsUsuallySafeGreedy|purell.FlagRemoveFragment|purell.FlagRemoveDuplicateSlashes|purell.FlagRemoveWWW|purell.FlagSortQuery)
	if err != nil {
		return raw
	}

	u, err := url.Parse(clean)
	if err != nil {
		return clean
	}
	if u.RawQuery == "" {
		return clean
	}
	params := u.Query()
	for _, p := range trackingParams {
		params.Del(p)
	}
	u.RawQuery = params.Encode()
	return u.String()
}
