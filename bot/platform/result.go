package platform

import "net/http"

// Outcome is the variant held by a Resolution.
type Outcome int

const (
	// OutcomeFailed means no playable substitute was found.
	OutcomeFailed Outcome = iota
	// OutcomeResolved means the lookup service produced a canonical link.
	OutcomeResolved
	// OutcomeFallback means only a best-effort video link was found.
	OutcomeFallback
)

func (o Outcome) String() string {
	switch o {
	case OutcomeResolved:
		return "resolved"
	case OutcomeFallback:
		return "fallback"
	default:
		return "failed"
	}
}

// FailureReason classifies an OutcomeFailed resolution.
type FailureReason int

const (
	ReasonNone FailureReason = iota
	ReasonRateLimited
	ReasonUpstreamError
	ReasonNoMatch
)

func (r FailureReason) String() string {
	switch r {
	case ReasonRateLimited:
		return "rate_limited"
	case ReasonUpstreamError:
		return "upstream_error"
	case ReasonNoMatch:
		return "no_match"
	default:
		return "none"
	}
}

// Resolution is the result of resolving one shared link. Exactly one variant
// is meaningful, selected by Outcome:
//
//	OutcomeResolved: CanonicalURL set; VideoURL and Title optional
//	OutcomeFallback: VideoURL set; Title optional; no CanonicalURL
//	OutcomeFailed:   Reason set; StatusCode set for ReasonUpstreamError
//
// Optional strings are empty when absent.
type Resolution struct {
	Outcome      Outcome
	CanonicalURL string
	VideoURL     string
	Title        string
	Reason       FailureReason
	StatusCode   int
}

// Resolved builds an OutcomeResolved resolution.
func Resolved(canonicalURL, videoURL, title string) Resolution {
	return Resolution{Outcome: OutcomeResolved, CanonicalURL: canonicalURL, VideoURL: videoURL, Title: title}
}

// FallbackResolved builds an OutcomeFallback resolution.
func FallbackResolved(videoURL, title string) Resolution {
	return Resolution{Outcome: OutcomeFallback, VideoURL: videoURL, Title: title}
}

// Failed builds an OutcomeFailed resolution.
func Failed(reason FailureReason, statusCode int) Resolution {
	return Resolution{Outcome: OutcomeFailed, Reason: reason, StatusCode: statusCode}
}

// FailedFromStatus classifies a non-success HTTP status.
func FailedFromStatus(statusCode int) Resolution {
	if statusCode == http.StatusTooManyRequests {
		return Failed(ReasonRateLimited, statusCode)
	}
	return Failed(ReasonUpstreamError, statusCode)
}

// Succeeded reports whether the resolution produced something worth storing.
func (r Resolution) Succeeded() bool {
	return r.Outcome == OutcomeResolved || r.Outcome == OutcomeFallback
}

// HasVideo reports whether a playable video link is present.
func (r Resolution) HasVideo() bool {
	return r.VideoURL != ""
}

// AllowsFallback reports whether the fallback path may be tried for r.
// Rate limiting never triggers fallback.
func (r Resolution) AllowsFallback() bool {
	return r.Outcome == OutcomeFailed && r.Reason != ReasonRateLimited
}
