package db

import (
	"time"

	"github.com/liuran001/SongShare-Go/bot"
)

// SharedSongModel mirrors the shared_songs schema. One row per
// (channel, message timestamp, original URL).
type SharedSongModel struct {
	ID           uint      `gorm:"primarykey"`
	CreatedAt    time.Time `gorm:"index;not null"`
	OriginalURL  string    `gorm:"not null;uniqueIndex:idx_shared_songs_natural_key,priority:3"`
	CanonicalURL *string
	VideoURL     *string
	Title        *string
	Platform     string `gorm:"not null;default:''"`
	UserID       string `gorm:"not null;default:'';index"`
	ChannelID    string `gorm:"not null;index;uniqueIndex:idx_shared_songs_natural_key,priority:1"`
	MessageTS    string `gorm:"not null;uniqueIndex:idx_shared_songs_natural_key,priority:2"`
}

func (SharedSongModel) TableName() string {
	return "shared_songs"
}

func toInternal(model SharedSongModel) *bot.SharedSong {
	return &bot.SharedSong{
		ID:           model.ID,
		CreatedAt:    model.CreatedAt,
		OriginalURL:  model.OriginalURL,
		CanonicalURL: fromNullable(model.CanonicalURL),
		VideoURL:     fromNullable(model.VideoURL),
		Title:        fromNullable(model.Title),
		Platform:     model.Platform,
		UserID:       model.UserID,
		ChannelID:    model.ChannelID,
		MessageTS:    model.MessageTS,
	}
}

func toModel(song *bot.SharedSong) *SharedSongModel {
	if song == nil {
		return &SharedSongModel{}
	}

	model := &SharedSongModel{
		OriginalURL:  song.OriginalURL,
		CanonicalURL: nullable(song.CanonicalURL),
		VideoURL:     nullable(song.VideoURL),
		Title:        nullable(song.Title),
		Platform:     song.Platform,
		UserID:       song.UserID,
		ChannelID:    song.ChannelID,
		MessageTS:    song.MessageTS,
	}

	if song.ID != 0 {
		model.ID = song.ID
	}
	if !song.CreatedAt.IsZero() {
		model.CreatedAt = song.CreatedAt
	}

	return model
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func fromNullable(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
