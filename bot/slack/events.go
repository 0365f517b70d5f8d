package slack

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/liuran001/SongShare-Go/bot"
	"github.com/slack-go/slack/slackevents"
)

// Envelope types.
const (
	TypeURLVerification = "url_verification"
	TypeEventCallback   = "event_callback"
)

// Envelope is the routed form of one Events API request.
type Envelope struct {
	Type      string
	Challenge string
	TeamID    string
	APIAppID  string
	EventID   string

	message *MessageEvent
}

// MessageEvent is the subset of an inner "message" event the pipeline reads.
type MessageEvent struct {
	Subtype  string
	Channel  string
	User     string
	Text     string
	TS       string
	ThreadTS string
	BotID    string
}

var ErrMalformedEnvelope = errors.New("slack: malformed event envelope")

// envelopeHead is decoded first so that requests the event parser rejects
// can still be routed by their outer type.
type envelopeHead struct {
	Type  string          `json:"type"`
	Event json.RawMessage `json:"event"`
}

// ParseEnvelope decodes an inbound request body. Callbacks whose inner event
// is absent or not modelled by the event parser yield an envelope without a
// message rather than an error.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var head envelopeHead
	if err := json.Unmarshal(body, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if head.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedEnvelope)
	}
	if head.Type == TypeEventCallback && len(head.Event) == 0 {
		return &Envelope{Type: head.Type}, nil
	}

	evt, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		if head.Type == TypeEventCallback {
			return &Envelope{Type: head.Type}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	env := &Envelope{Type: evt.Type, TeamID: evt.TeamID, APIAppID: evt.APIAppID}
	switch data := evt.Data.(type) {
	case *slackevents.EventsAPIURLVerificationEvent:
		env.Challenge = data.Challenge
	case *slackevents.EventsAPICallbackEvent:
		env.EventID = data.EventID
	}
	if msg, ok := evt.InnerEvent.Data.(*slackevents.MessageEvent); ok && msg != nil {
		env.message = &MessageEvent{
			Subtype:  msg.SubType,
			Channel:  msg.Channel,
			User:     msg.User,
			Text:     msg.Text,
			TS:       msg.TimeStamp,
			ThreadTS: msg.ThreadTimeStamp,
			BotID:    msg.BotID,
		}
	}
	return env, nil
}

// Message returns the nested message event. ok is false for other event types.
func (e *Envelope) Message() (*MessageEvent, bool) {
	if e == nil || e.Type != TypeEventCallback || e.message == nil {
		return nil, false
	}
	return e.message, true
}

// ToBot converts the wire event into the pipeline's message type.
func (m *MessageEvent) ToBot() bot.MessageEvent {
	return bot.MessageEvent{
		ChannelID: m.Channel,
		UserID:    m.User,
		Text:      m.Text,
		TS:        m.TS,
		ThreadTS:  m.ThreadTS,
		BotID:     m.BotID,
		Subtype:   m.Subtype,
	}
}
