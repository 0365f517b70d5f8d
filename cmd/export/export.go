package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/liuran001/SongShare-Go/bot"
	"github.com/liuran001/SongShare-Go/bot/config"
	"github.com/liuran001/SongShare-Go/bot/db"
	logpkg "github.com/liuran001/SongShare-Go/bot/logger"
)

type options struct {
	ConfigPath string
	ChannelID  string
	UserID     string
	Since      time.Duration
	Limit      int
	Format     string
	Output     string
	Summary    bool
	// now is overridable for tests.
	now func() time.Time
}

var csvHeader = []string{"id", "created_at", "channel_id", "message_ts", "user_id", "platform", "original_url", "canonical_url", "video_url", "title"}

type shareRow struct {
	ID           uint      `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	ChannelID    string    `json:"channel_id"`
	MessageTS    string    `json:"message_ts"`
	UserID       string    `json:"user_id"`
	Platform     string    `json:"platform"`
	OriginalURL  string    `json:"original_url"`
	CanonicalURL string    `json:"canonical_url,omitempty"`
	VideoURL     string    `json:"video_url,omitempty"`
	Title        string    `json:"title,omitempty"`
}

func run(ctx context.Context, opts options, out io.Writer, log *logpkg.Logger) error {
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "json" {
		return fmt.Errorf("unknown format %q", opts.Format)
	}

	conf, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	var repo bot.ShareRepository
	repo, err = db.OpenSQLiteReadOnly(conf.GetString("Database"),
		logpkg.NewGormLogger(log.Slog(), logpkg.GormLevel(conf.GetString("GormLogLevel"))))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			log.Warn("close database", "error", err)
		}
	}()

	if opts.Summary {
		if opts.ChannelID != "" || opts.UserID != "" {
			return writeScopedSummary(ctx, out, repo, opts)
		}
		counts, err := repo.CountByPlatform(ctx)
		if err != nil {
			return err
		}
		return writeSummary(out, counts)
	}

	filter := bot.ShareFilter{
		ChannelID: opts.ChannelID,
		UserID:    opts.UserID,
		Limit:     opts.Limit,
	}
	if opts.Since > 0 {
		now := time.Now
		if opts.now != nil {
			now = opts.now
		}
		filter.Since = now().Add(-opts.Since)
	}

	shares, err := repo.ListShares(ctx, filter)
	if err != nil {
		return err
	}

	if format == "json" {
		return writeJSON(out, shares)
	}
	return writeCSV(out, shares)
}

func toRow(s *bot.SharedSong) shareRow {
	return shareRow{
		ID:           s.ID,
		CreatedAt:    s.CreatedAt.UTC(),
		ChannelID:    s.ChannelID,
		MessageTS:    s.MessageTS,
		UserID:       s.UserID,
		Platform:     s.Platform,
		OriginalURL:  s.OriginalURL,
		CanonicalURL: s.CanonicalURL,
		VideoURL:     s.VideoURL,
		Title:        s.Title,
	}
}

func writeCSV(w io.Writer, shares []*bot.SharedSong) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, s := range shares {
		r := toRow(s)
		record := []string{
			strconv.FormatUint(uint64(r.ID), 10),
			r.CreatedAt.Format(time.RFC3339),
			r.ChannelID,
			r.MessageTS,
			r.UserID,
			r.Platform,
			r.OriginalURL,
			r.CanonicalURL,
			r.VideoURL,
			r.Title,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, shares []*bot.SharedSong) error {
	rows := make([]shareRow, 0, len(shares))
	for _, s := range shares {
		rows = append(rows, toRow(s))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

// writeScopedSummary prints one total per requested scope, channel first.
func writeScopedSummary(ctx context.Context, w io.Writer, repo bot.ShareRepository, opts options) error {
	if opts.ChannelID != "" {
		n, err := repo.CountByChannel(ctx, opts.ChannelID)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "channel:%s\t%d\n", opts.ChannelID, n); err != nil {
			return err
		}
	}
	if opts.UserID != "" {
		n, err := repo.CountByUser(ctx, opts.UserID)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "user:%s\t%d\n", opts.UserID, n); err != nil {
			return err
		}
	}
	return nil
}

func writeSummary(w io.Writer, counts map[string]int64) error {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := fmt.Fprintf(w, "%s\t%d\n", name, counts[name]); err != nil {
			return err
		}
	}
	return nil
}
