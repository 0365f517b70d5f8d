package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/liuran001/SongShare-Go/bot"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Repository stores shared songs.
type Repository struct {
	db *gorm.DB
}

var _ bot.ShareRepository = (*Repository)(nil)

// ErrDatabaseNotFound is returned when a read-only open targets a missing file.
var ErrDatabaseNotFound = errors.New("database file not found")

// NewSQLiteRepository creates a repository backed by SQLite, creating the
// file and schema when missing.
func NewSQLiteRepository(dsn string, gormLogger logger.Interface) (*Repository, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn required")
	}

	dbDir := filepath.Dir(dsn)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := open(dsn, gormLogger)
	if err != nil {
		return nil, err
	}

	if err := applySQLitePragmas(db); err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&SharedSongModel{}); err != nil {
		return nil, fmt.Errorf("migrate shared_songs: %w", err)
	}

	return &Repository{db: db}, nil
}

// OpenSQLiteReadOnly opens an existing database for queries only. It never
// creates files, migrates the schema or changes the journal mode.
func OpenSQLiteReadOnly(path string, gormLogger logger.Interface) (*Repository, error) {
	if path == "" {
		return nil, fmt.Errorf("dsn required")
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, path)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	db, err := open(path, gormLogger)
	if err != nil {
		return nil, err
	}
	if err := db.Exec("PRAGMA query_only = ON").Error; err != nil {
		return nil, fmt.Errorf("set query_only: %w", err)
	}
	if !db.Migrator().HasTable(&SharedSongModel{}) {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
		return nil, fmt.Errorf("%s has no shared_songs table", path)
	}
	return &Repository{db: db}, nil
}

func open(dsn string, gormLogger logger.Interface) (*gorm.DB, error) {
	if gormLogger == nil {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// query_only and other connection pragmas only hold on the connection
	// that ran them.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}

// ConfigurePool updates the database connection pool settings.
func (r *Repository) ConfigurePool(maxOpen, maxIdle int, maxLifetime time.Duration) error {
	if r == nil || r.db == nil {
		return errors.New("repository not configured")
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	if maxOpen >= 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if maxIdle >= 0 {
		sqlDB.SetMaxIdleConns(maxIdle)
	}
	if maxLifetime >= 0 {
		sqlDB.SetConnMaxLifetime(maxLifetime)
	}
	return nil
}

// RecordShare inserts song unless a row with the same channel, message
// timestamp and original URL exists. Duplicates report inserted=false.
func (r *Repository) RecordShare(ctx context.Context, song *bot.SharedSong) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("repository not configured")
	}
	if song == nil {
		return false, errors.New("song required")
	}
	if strings.TrimSpace(song.ChannelID) == "" || strings.TrimSpace(song.MessageTS) == "" || strings.TrimSpace(song.OriginalURL) == "" {
		return false, errors.New("channel, message timestamp and original url required")
	}

	model := toModel(song)
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now()
	}

	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "channel_id"}, {Name: "message_ts"}, {Name: "original_url"}},
		DoNothing: true,
	}).Create(model)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	song.ID = model.ID
	song.CreatedAt = model.CreatedAt
	return true, nil
}

// ListShares returns shares matching filter, newest first.
func (r *Repository) ListShares(ctx context.Context, filter bot.ShareFilter) ([]*bot.SharedSong, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("repository not configured")
	}

	query := r.db.WithContext(ctx).Model(&SharedSongModel{})
	if channelID := strings.TrimSpace(filter.ChannelID); channelID != "" {
		query = query.Where("channel_id = ?", channelID)
	}
	if userID := strings.TrimSpace(filter.UserID); userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if !filter.Since.IsZero() {
		query = query.Where("created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		query = query.Where("created_at < ?", filter.Until)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var models []SharedSongModel
	if err := query.Order("created_at DESC").Order("id DESC").Find(&models).Error; err != nil {
		return nil, err
	}

	results := make([]*bot.SharedSong, 0, len(models))
	for _, model := range models {
		results = append(results, toInternal(model))
	}
	return results, nil
}

// Count returns the total number of stored shares.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&SharedSongModel{}).Count(&count).Error
	return count, err
}

// CountByChannel returns share count for a channel.
func (r *Repository) CountByChannel(ctx context.Context, channelID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&SharedSongModel{}).Where("channel_id = ?", channelID).Count(&count).Error
	return count, err
}

// CountByUser returns share count for a user.
func (r *Repository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&SharedSongModel{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// CountByPlatform returns share counts grouped by source platform.
func (r *Repository) CountByPlatform(ctx context.Context) (map[string]int64, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("repository not configured")
	}
	rows := make([]struct {
		Platform string
		Count    int64
	}, 0)
	err := r.db.WithContext(ctx).Model(&SharedSongModel{}).
		Select("platform, COUNT(*) as count").
		Group("platform").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make(map[string]int64, len(rows))
	for _, row := range rows {
		result[row.Platform] = row.Count
	}
	return result, nil
}

func applySQLitePragmas(db *gorm.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-64000;",
	}
	for _, stmt := range pragmas {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	return sqlDB.Close()
}
