package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/liuran001/SongShare-Go/bot"
	"github.com/liuran001/SongShare-Go/bot/db"
	logpkg "github.com/liuran001/SongShare-Go/bot/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"
)

func seed(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "songs.db")

	repo, err := db.NewSQLiteRepository(dbPath, logpkg.NewGormLogger(slog.New(slog.NewTextHandler(io.Discard, nil)), gormlogger.Silent))
	require.NoError(t, err)
	ctx := context.Background()
	for _, s := range []*bot.SharedSong{
		{OriginalURL: "https://open.spotify.com/track/1", CanonicalURL: "https://song.link/s/1", Title: "A - B", Platform: "spotify", UserID: "U1", ChannelID: "C1", MessageTS: "1.1"},
		{OriginalURL: "https://youtu.be/x", VideoURL: "https://www.youtube.com/watch?v=x", Platform: "youtube", UserID: "U2", ChannelID: "C2", MessageTS: "2.2"},
	} {
		inserted, err := repo.RecordShare(ctx, s)
		require.NoError(t, err)
		require.True(t, inserted)
	}
	require.NoError(t, repo.Close())

	cfgPath := filepath.Join(dir, "config.ini")
	require.NoError(t, os.WriteFile(cfgPath, []byte("Database = "+dbPath+"\n"), 0o600))
	return cfgPath
}

func quiet() *logpkg.Logger {
	return logpkg.NewWithWriter(io.Discard, logpkg.Options{Level: "warn"})
}

func TestExportCSV(t *testing.T) {
	cfg := seed(t)
	var buf bytes.Buffer
	require.NoError(t, run(context.Background(), options{ConfigPath: cfg, Format: "csv"}, &buf, quiet()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, csvHeader, records[0])
}

func TestExportJSONFiltered(t *testing.T) {
	cfg := seed(t)
	var buf bytes.Buffer
	require.NoError(t, run(context.Background(), options{ConfigPath: cfg, Format: "json", ChannelID: "C1"}, &buf, quiet()))

	var rows []shareRow
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "https://song.link/s/1", rows[0].CanonicalURL)
	assert.Equal(t, "spotify", rows[0].Platform)
}

func TestExportSummary(t *testing.T) {
	cfg := seed(t)
	var buf bytes.Buffer
	require.NoError(t, run(context.Background(), options{ConfigPath: cfg, Summary: true}, &buf, quiet()))
	assert.Equal(t, "spotify\t1\nyoutube\t1\n", buf.String())
}

func TestExportUnknownFormat(t *testing.T) {
	err := run(context.Background(), options{Format: "xml"}, io.Discard, quiet())
	assert.Error(t, err)
}

func TestExportScopedSummary(t *testing.T) {
	cfg := seed(t)

	var buf bytes.Buffer
	require.NoError(t, run(context.Background(), options{ConfigPath: cfg, Summary: true, ChannelID: "C1"}, &buf, quiet()))
	assert.Equal(t, "channel:C1\t1\n", buf.String())

	buf.Reset()
	require.NoError(t, run(context.Background(), options{ConfigPath: cfg, Summary: true, ChannelID: "C9", UserID: "U2"}, &buf, quiet()))
	assert.Equal(t, "channel:C9\t0\nuser:U2\t1\n", buf.String())
}

func TestExportMissingDatabase(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "typo.db")
	cfgPath := filepath.Join(dir, "config.ini")
	require.NoError(t, os.WriteFile(cfgPath, []byte("Database = "+dbPath+"\n"), 0o600))

	err := run(context.Background(), options{ConfigPath: cfgPath, Summary: true}, io.Discard, quiet())
	require.Error(t, err)
	assert.ErrorIs(t, err, db.ErrDatabaseNotFound)
	assert.NoFileExists(t, dbPath)
}
