package bot

import (
	"context"
	"time"
)

// Logger is the minimal logging abstraction used across modules.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

// Config provides typed access to configuration values.
type Config interface {
	GetString(key string) string
	GetInt(key string) int
	GetFloat64(key string) float64
	GetBool(key string) bool
	GetSeconds(key string, fallback time.Duration) time.Duration
}

// ShareRepository defines storage operations for shared songs.
type ShareRepository interface {
	// RecordShare inserts song unless its natural key already exists.
	// inserted is false for duplicates; duplicates are not an error.
	RecordShare(ctx context.Context, song *SharedSong) (inserted bool, err error)
	ListShares(ctx context.Context, filter ShareFilter) ([]*SharedSong, error)
	Count(ctx context.Context) (int64, error)
	CountByChannel(ctx context.Context, channelID string) (int64, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	CountByPlatform(ctx context.Context) (map[string]int64, error)
	Close() error
}

// WorkerPool limits concurrency for background tasks.
type WorkerPool interface {
	TrySubmit(task func()) error
	Shutdown(ctx context.Context) error
	StopNow()
	Size() int
}
