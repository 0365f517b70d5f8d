package slack

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	slackapi "github.com/slack-go/slack"
)

const (
	HeaderTimestamp = "X-Slack-Request-Timestamp"
	HeaderSignature = "X-Slack-Signature"
)

var (
	ErrMissingSecret    = errors.New("slack: signing secret not configured")
	ErrMissingSignature = errors.New("slack: missing signature headers")
	ErrStaleRequest     = errors.New("slack: request timestamp too old")
	ErrInvalidSignature = errors.New("slack: invalid signature")
)

// VerifyRequest checks the signature headers of an inbound request against
// its raw body. Timestamps more than five minutes from the local clock, in
// either direction, are rejected as stale.
func VerifyRequest(secret string, header http.Header, body []byte) error {
	if secret == "" {
		return ErrMissingSecret
	}
	if strings.TrimSpace(header.Get(HeaderTimestamp)) == "" || strings.TrimSpace(header.Get(HeaderSignature)) == "" {
		return ErrMissingSignature
	}

	sv, err := slackapi.NewSecretsVerifier(header, secret)
	switch {
	case errors.Is(err, slackapi.ErrMissingHeaders):
		return ErrMissingSignature
	case errors.Is(err, slackapi.ErrExpiredTimestamp):
		return ErrStaleRequest
	case err != nil:
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if _, err := sv.Write(body); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if err := sv.Ensure(); err != nil {
		return ErrInvalidSignature
	}
	return nil
}
