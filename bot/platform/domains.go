package platform

import (
	"regexp"
	"strings"

	"github.com/liuran001/SongShare-Go/bot/platform/registry"
)

// Domain describes one streaming platform by the host names its share links use.
// A host starting with "*." matches any single subdomain label.
type Domain struct {
	Label string
	Hosts []string
}

// Name implements registry.Platform.
func (d Domain) Name() string {
	return d.Label
}

// Pattern implements registry.Platform.
func (d Domain) Pattern() string {
	if len(d.Hosts) == 0 {
		return ""
	}
	parts := make([]string, 0, len(d.Hosts))
	for _, host := range d.Hosts {
		host = strings.ToLower(strings.TrimSpace(host))
		if host == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(host, "*."); ok {
			parts = append(parts, `[a-z0-9][a-z0-9-]*\.`+regexp.QuoteMeta(rest))
			continue
		}
		parts = append(parts, regexp.QuoteMeta(host))
	}
	if len(parts) == 0 {
		return ""
	}
	return `(?:www\.)?(?:` + strings.Join(parts, "|") + `)`
}

// DefaultDomains lists the platforms whose links are picked up from messages.
// More specific hosts come before broader ones on the same base domain so that
// MatchURL labels them correctly.
var DefaultDomains = []Domain{
	{Label: "spotify", Hosts: []string{"open.spotify.com", "spotify.link"}},
	{Label: "applemusic", Hosts: []string{"music.apple.com"}},
	{Label: "itunes", Hosts: []string{"itunes.apple.com"}},
	{Label: "youtubemusic", Hosts: []string{"music.youtube.com"}},
	{Label: "youtube", Hosts: []string{"youtube.com", "m.youtube.com", "youtu.be"}},
	{Label: "soundcloud", Hosts: []string{"on.soundcloud.com", "soundcloud.com"}},
	{Label: "deezer", Hosts: []string{"deezer.page.link", "deezer.com"}},
	{Label: "tidal", Hosts: []string{"listen.tidal.com", "tidal.com"}},
	{Label: "amazonmusic", Hosts: []string{"music.amazon.com"}},
	{Label: "pandora", Hosts: []string{"pandora.com"}},
	{Label: "napster", Hosts: []string{"napster.com"}},
	{Label: "audiomack", Hosts: []string{"audiomack.com"}},
	{Label: "anghami", Hosts: []string{"anghami.com"}},
	{Label: "boomplay", Hosts: []string{"boomplay.com"}},
	{Label: "yandex", Hosts: []string{"music.yandex.ru", "music.yandex.com"}},
	{Label: "audius", Hosts: []string{"audius.co"}},
	{Label: "qobuz", Hosts: []string{"open.qobuz.com"}},
	{Label: "bandcamp", Hosts: []string{"*.bandcamp.com"}},
}

// NewDefaultRegistry returns a registry holding DefaultDomains.
func NewDefaultRegistry() (*registry.Registry, error) {
	reg := registry.New()
	for _, d := range DefaultDomains {
		if err := reg.Register(d); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
