package botdetect

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"

func TestIsBotMatchesEveryPatternAnyCase(t *testing.T) {
	t.Parallel()

	for _, pattern := range Patterns() {
		require.True(t, IsBot("Mozilla/5.0 (compatible; "+pattern+"/1.0)"), pattern)
		require.True(t, IsBot(strings.ToUpper(pattern)), pattern)
	}
}

func TestIsBotRejectsBrowsers(t *testing.T) {
	t.Parallel()

	require.False(t, IsBot(browserUA))
	require.False(t, IsBot("Mozilla/5.0 (human browser)"))
	require.False(t, IsBot(""))
}

func TestPatternsReturnsCopy(t *testing.T) {
	t.Parallel()

	p := Patterns()
	require.Len(t, p, 33)
	p[0] = "mutated"
	require.Equal(t, "adsbot", Patterns()[0])
}

func TestClassAndType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ua        string
		wantClass string
		wantType  string
	}{
		{"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", ClassSearch, "Google"},
		{"Mozilla/5.0 (compatible; bingbot/2.0)", ClassSearch, "Bing"},
		{"facebookexternalhit/1.1", ClassSocial, "Facebook"},
		{"LinkedInBot/1.0", ClassSocial, "LinkedIn"},
		{"Twitterbot/1.0", ClassSocial, "Twitter"},
		{"Mozilla/5.0 (compatible; GPTBot/1.0)", ClassSearch, "ChatGPT"},
		{"ClaudeBot/1.0", ClassSearch, "Claude"},
		{"DuckDuckBot/1.1", ClassSearch, "Other"},
		{browserUA, ClassHuman, "Other"},
	}
	for _, tc := range tests {
		require.Equal(t, tc.wantClass, Class(tc.ua), tc.ua)
		require.Equal(t, tc.wantType, Type(tc.ua), tc.ua)
	}
}
