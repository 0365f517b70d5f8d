package youtube

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

// platformNames are the site names streaming pages append to their titles.
var platformNames = []string{
	"Spotify",
	"Apple Music",
	"iTunes",
	"YouTube Music",
	"YouTube",
	"SoundCloud",
	"Deezer",
	"TIDAL",
	"Amazon Music",
	"Pandora",
	"Napster",
	"Audiomack",
	"Anghami",
	"Boomplay",
	"Yandex Music",
	"Яндекс Музыка",
	"Audius",
	"Qobuz",
	"Bandcamp",
}

var (
	platformAlt = func() string {
		quoted := make([]string, len(platformNames))
		for i, name := range platformNames {
			quoted[i] = regexp.QuoteMeta(name)
		}
		return strings.Join(quoted, "|")
	}()

	// "Song - Artist | Spotify", "Song - Deezer", "Song — TIDAL"
	separatorSuffix = regexp.MustCompile(`(?i)\s*[-|–—·]\s*(?:` + platformAlt + `)\s*$`)
	// "Song by Artist on Apple Music"
	onSuffix = regexp.MustCompile(`(?i)\s+on\s+(?:` + platformAlt + `)\s*$`)
	// "Song - song and lyrics by Artist"
	fillerPhrase = regexp.MustCompile(`(?i)\s*-\s*(?:song and lyrics by|song by|single by|album by)\s+`)
	spaces       = regexp.MustCompile(`\s+`)
)

const minQueryLength = 4

// QueryFromTitle derives a video search query from a streaming page title.
// It returns false when the cleaned title is too short to search for.
func QueryFromTitle(title string) (string, bool) {
	query := html.UnescapeString(strings.TrimSpace(title))

	for {
		stripped := separatorSuffix.ReplaceAllString(query, "")
		stripped = onSuffix.ReplaceAllString(stripped, "")
		if stripped == query {
			break
		}
		query = stripped
	}

	query = fillerPhrase.ReplaceAllString(query, " ")
	query = strings.TrimSpace(spaces.ReplaceAllString(query, " "))

	if utf8.RuneCountInString(query) < minQueryLength || isPlatformName(query) {
		return "", false
	}
	return query, true
}

func isPlatformName(s string) bool {
	for _, name := range platformNames {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}
