package reply

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/liuran001/SongShare-Go/bot/platform"
)

// FallbackTemplates prefix a best-effort video link. Order is stable so a
// picker index always selects the same text.
var FallbackTemplates = []string{
	"Couldn't find this one everywhere, but I dug up a video that might be it:",
	"My link lookup came up empty, so here's my best guess. No promises:",
	"Not my finest work, but this is probably the song:",
	"I tried. I really tried. Closest thing I found:",
	"The usual lookup failed me, so I went searching. Fingers crossed:",
}

const (
	RateLimitedNotice = "I'm being rate limited right now. Try sharing that link again in a minute."
	NoMatchNotice     = "I couldn't find that song on any other platform."
	upstreamNotice    = "Sorry, I couldn't look up that link (lookup service returned %d)."
	postFailureNotice = "Something went wrong posting my reply: %s"
)

// Reply is a composed outbound message.
type Reply struct {
	Text string
	// Persist is true when the resolution should be recorded as a share.
	Persist bool
}

// Composer builds reply text from resolutions.
type Composer struct {
	// Pick returns a uniform index in [0, n). Nil uses math/rand.
	Pick func(n int) int
}

// NewComposer returns a Composer using the default random source.
func NewComposer() *Composer {
	return &Composer{}
}

// PickTemplate returns the fallback template chosen by pick.
func PickTemplate(pick func(n int) int) string {
	n := len(FallbackTemplates)
	if pick == nil {
		pick = rand.IntN
	}
	idx := pick(n)
	if idx < 0 || idx >= n {
		idx = 0
	}
	return FallbackTemplates[idx]
}

// Compose builds the reply for res.
func (c *Composer) Compose(res platform.Resolution) Reply {
	switch res.Outcome {
	case platform.OutcomeResolved:
		lines := []string{res.CanonicalURL}
		if res.HasVideo() {
			lines = append(lines, res.VideoURL)
		}
		return Reply{Text: strings.Join(lines, "\n"), Persist: true}

	case platform.OutcomeFallback:
		var pick func(int) int
		if c != nil {
			pick = c.Pick
		}
		return Reply{Text: PickTemplate(pick) + "\n" + res.VideoURL, Persist: true}

	default:
		return Reply{Text: FailureNotice(res)}
	}
}

// FailureNotice is the user-facing text for a failed resolution.
func FailureNotice(res platform.Resolution) string {
	switch res.Reason {
	case platform.ReasonRateLimited:
		return RateLimitedNotice
	case platform.ReasonNoMatch:
		return NoMatchNotice
	default:
		return fmt.Sprintf(upstreamNotice, res.StatusCode)
	}
}

// PostFailureNotice is the follow-up text sent when the chat API rejects a reply.
func PostFailureNotice(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown error"
	}
	return fmt.Sprintf(postFailureNotice, reason)
}
