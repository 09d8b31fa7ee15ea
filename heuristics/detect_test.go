package heuristics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		text    string
		link    bool
		mention bool
	}{
		{text: "", link: false, mention: false},
		{text: "selling a bike, good condition", link: false, mention: false},
		{text: "details at http://example.com/bike", link: true, mention: false},
		{text: "HTTPS://EXAMPLE.COM", link: true, mention: false},
		{text: "see http://", link: true, mention: false},
		{text: "check www.example.org", link: true, mention: false},
		{text: "join t.me/somechannel now", link: true, mention: false},
		{text: "write me on wa.me/15551234567", link: true, mention: false},
		{text: "invite: discord.gg/abcdef", link: true, mention: false},
		{text: "ask @seller_bot for price", link: false, mention: true},
		{text: "@seller", link: false, mention: true},
		{text: "mail me: someone@example", link: false, mention: false},
		{text: "t.me/x and @y", link: true, mention: true},
		{text: "at the meeting", link: false, mention: false},
	}

	for _, fix := range fixtures {
		res := Detect(fix.text)
		assert.Equal(fix.link, res.HasLink, fix.text)
		assert.Equal(fix.mention, res.HasMention, fix.text)
		assert.Equal(fix.link || fix.mention, res.Prohibited, fix.text)
	}
}

func TestExtractLinks(t *testing.T) {
	assert := assert.New(t)

	assert.Empty(ExtractLinks(""))
	assert.Empty(ExtractLinks("no links here"))
	assert.Equal([]string{"https://example.com/a", "www.example.org"}, ExtractLinks("go to https://example.com/a, or www.example.org."))
}

func TestNormalizeURL(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("https://example.com/path", NormalizeURL("www.example.com/path"))
	assert.Equal("https://example.com/a?b=c", NormalizeURL("HTTPS://Example.com/a?utm_source=chat&b=c#frag"))
	assert.Equal("https://t.me/somechannel", NormalizeURL("t.me/somechannel"))
}
