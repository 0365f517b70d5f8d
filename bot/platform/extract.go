package platform

import (
	"errors"
	"regexp"
	"strings"

	"github.com/liuran001/SongShare-Go/bot/platform/registry"
)

// Extractor finds music platform links in free-form message text.
type Extractor struct {
	reg *registry.Registry
	re  *regexp.Regexp
}

// NewExtractor compiles a single matcher for every platform in reg.
func NewExtractor(reg *registry.Registry) (*Extractor, error) {
	if reg == nil || reg.Len() == 0 {
		return nil, errors.New("extractor: no platforms registered")
	}

	platforms := reg.GetAll()
	alts := make([]string, 0, len(platforms))
	for _, p := range platforms {
		alts = append(alts, `(?:`+p.Pattern()+`)`)
	}

	// The leading group stands in for a lookbehind: a host only counts when it
	// does not continue a longer host name.
	expr := `(?i)(?:^|[^a-z0-9.\-/])((?:https?://)?(?:` + strings.Join(alts, "|") + `)/\S+)`
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &Extractor{reg: reg, re: re}, nil
}

// NewDefaultExtractor builds an Extractor over DefaultDomains.
func NewDefaultExtractor() (*Extractor, error) {
	reg, err := NewDefaultRegistry()
	if err != nil {
		return nil, err
	}
	return NewExtractor(reg)
}

// Extract returns the cleaned links found in text in first-seen order.
// Duplicates are kept.
func (e *Extractor) Extract(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	matches := e.re.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	links := make([]string, 0, len(matches))
	for _, m := range matches {
		if link := CleanLink(m[1]); link != "" {
			links = append(links, link)
		}
	}
	return links
}

// Platform returns the platform label for a cleaned link, or "" when unknown.
func (e *Extractor) Platform(link string) string {
	p, ok := e.reg.MatchURL(link)
	if !ok {
		return ""
	}
	return p.Name()
}

// chatUnescaper reverses the three entities chat platforms escape in message
// text. A single pass keeps "&amp;lt;" as the literal "&lt;".
var chatUnescaper = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">")

// CleanLink removes chat link wrapping ("<URL|label>" and "<URL>" become "URL")
// and decodes escaped &, < and >.
func CleanLink(raw string) string {
	link := strings.TrimSpace(raw)
	link = strings.TrimPrefix(link, "<")
	if idx := strings.IndexByte(link, '|'); idx >= 0 {
		link = link[:idx]
	}
	if idx := strings.IndexByte(link, '>'); idx >= 0 {
		link = link[:idx]
	}
	return chatUnescaper.Replace(strings.TrimSpace(link))
}
