package bot

import "time"

// SharedSong is one resolved music link posted in a conversation.
// CanonicalURL, VideoURL and Title are empty when absent.
type SharedSong struct {
	ID           uint
	CreatedAt    time.Time
	OriginalURL  string
	CanonicalURL string
	VideoURL     string
	Title        string
	Platform     string // source platform detected from OriginalURL (e.g. "spotify")
	UserID       string
	ChannelID    string
	MessageTS    string
}

// MessageEvent is an inbound chat message handed to the pipeline.
type MessageEvent struct {
	ChannelID string
	UserID    string
	Text      string
	// TS orders messages within a channel and is part of the share natural key.
	TS       string
	ThreadTS string
	BotID    string
	Subtype  string
}

// FromBot reports whether the message was posted by a bot (including ourselves).
func (m MessageEvent) FromBot() bool {
	return m.BotID != "" || m.Subtype == "bot_message"
}

// ShareFilter narrows share listings used by reporting tools.
type ShareFilter struct {
	ChannelID string
	UserID    string
	Since     time.Time
	Until     time.Time
	Limit     int
}
