package platform

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuran001/SongShare-Go/bot/platform/registry"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := NewDefaultExtractor()
	require.NoError(t, err)
	return e
}

func TestExtractEveryDomain(t *testing.T) {
	e := newTestExtractor(t)

	for _, d := range DefaultDomains {
		for _, host := range d.Hosts {
			host = strings.Replace(host, "*.", "someartist.", 1)
			t.Run(host, func(t *testing.T) {
				url := "https://" + host + "/track/abc123"
				got := e.Extract("check out " + url)
				assert.Equal(t, []string{url}, got)
				assert.Equal(t, d.Label, e.Platform(url))
			})
		}
	}
}

func TestExtractNoMatch(t *testing.T) {
	e := newTestExtractor(t)

	tests := []string{
		"",
		"   ",
		"nothing to see here",
		"https://example.com/track/1",
		"https://notspotify.com/track/1",
		"https://fakeyoutube.com/watch?v=1",
		"https://example.com/open.spotify.com/track/1",
		"open.spotify.com without a path",
	}
	for _, text := range tests {
		assert.Empty(t, e.Extract(text), "text %q", text)
	}
}

func TestExtractCleansChatWrapping(t *testing.T) {
	e := newTestExtractor(t)

	assert.Equal(t,
		[]string{"https://open.spotify.com/track/1"},
		e.Extract("<https://open.spotify.com/track/1|Track>"))
	assert.Equal(t,
		[]string{"https://music.apple.com/us/album/x?i=1"},
		e.Extract("listen <https://music.apple.com/us/album/x?i=1>"))
}

func TestExtractOrderAndDuplicates(t *testing.T) {
	e := newTestExtractor(t)

	text := "first <https://open.spotify.com/track/1|a> then https://youtu.be/xyz\n" +
		"and again <https://open.spotify.com/track/1>"
	got := e.Extract(text)
	assert.Equal(t, []string{
		"https://open.spotify.com/track/1",
		"https://youtu.be/xyz",
		"https://open.spotify.com/track/1",
	}, got)
}

func TestExtractCaseInsensitiveWithoutScheme(t *testing.T) {
	e := newTestExtractor(t)

	got := e.Extract("try OPEN.SPOTIFY.COM/track/9 or Http://SoundCloud.com/a/b")
	assert.Equal(t, []string{"OPEN.SPOTIFY.COM/track/9", "Http://SoundCloud.com/a/b"}, got)
	assert.Equal(t, "spotify", e.Platform(got[0]))
	assert.Equal(t, "soundcloud", e.Platform(got[1]))
}

func TestPlatformLabelsSpecificHosts(t *testing.T) {
	e := newTestExtractor(t)

	assert.Equal(t, "youtubemusic", e.Platform("https://music.youtube.com/watch?v=1"))
	assert.Equal(t, "youtube", e.Platform("https://www.youtube.com/watch?v=1"))
	assert.Equal(t, "itunes", e.Platform("https://itunes.apple.com/us/album/1"))
	assert.Equal(t, "", e.Platform("https://example.com/x"))
}

func TestCleanLink(t *testing.T) {
	tests := map[string]string{
		"<https://a.com/x|label>":              "https://a.com/x",
		"<https://a.com/x>":                    "https://a.com/x",
		"https://a.com/x":                      "https://a.com/x",
		" https://a.com/x|":                    "https://a.com/x",
		"<https://a.com/x?si=a&amp;b=c|label>": "https://a.com/x?si=a&b=c",
		"https://a.com/x?q=&lt;b&gt;":          "https://a.com/x?q=<b>",
		"https://a.com/x?q=&amp;lt;":           "https://a.com/x?q=&lt;",
	}
	for in, want := range tests {
		assert.Equal(t, want, CleanLink(in), "input %q", in)
	}
}

func TestExtractUnescapesQuery(t *testing.T) {
	ex, err := NewDefaultExtractor()
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"https://open.spotify.com/track/1?si=a&b=c"},
		ex.Extract("see https://open.spotify.com/track/1?si=a&amp;b=c"))
	assert.Equal(t,
		[]string{"https://open.spotify.com/track/1?si=a&b=c"},
		ex.Extract("see <https://open.spotify.com/track/1?si=a&amp;b=c>"))
}

func TestNewExtractorEmptyRegistry(t *testing.T) {
	_, err := NewExtractor(registry.New())
	assert.Error(t, err)
}

func TestDomainPattern(t *testing.T) {
	d := Domain{Label: "x", Hosts: []string{"a.example.com", "*.band.com"}}
	assert.Equal(t, `(?:www\.)?(?:a\.example\.com|[a-z0-9][a-z0-9-]*\.band\.com)`, d.Pattern())
	assert.Equal(t, "", Domain{Label: "empty"}.Pattern())
}

func TestResolutionHelpers(t *testing.T) {
	res := Resolved("https://song.link/x", "https://youtu.be/y", "A - B")
	assert.True(t, res.Succeeded())
	assert.True(t, res.HasVideo())
	assert.False(t, res.AllowsFallback())

	limited := FailedFromStatus(429)
	assert.Equal(t, ReasonRateLimited, limited.Reason)
	assert.False(t, limited.AllowsFallback())

	upstream := FailedFromStatus(500)
	assert.Equal(t, ReasonUpstreamError, upstream.Reason)
	assert.Equal(t, 500, upstream.StatusCode)
	assert.True(t, upstream.AllowsFallback())

	assert.True(t, Failed(ReasonNoMatch, 200).AllowsFallback())
	assert.Equal(t, "fallback", FallbackResolved("v", "").Outcome.String())
}

func TestServiceErrorUnwrap(t *testing.T) {
	err := NewStatusError("songlink", 429)
	assert.True(t, errors.Is(err, ErrRateLimited))

	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, 429, svcErr.Status)

	assert.True(t, errors.Is(NewTransportError("youtube", errors.New("dial")), ErrTransport))
	assert.True(t, errors.Is(NewNoFallbackError("youtube", "empty"), ErrNoFallback))
	assert.True(t, errors.Is(NewStatusError("songlink", 502), ErrUpstream))
}
