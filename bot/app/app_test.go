package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.ini")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewRequiresSlackCredentials(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "LogDir =\nDatabase = "+filepath.Join(dir, "songs.db")+"\n")

	_, err := New(context.Background(), path, BuildInfo{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slack.bot_token")
}

func TestNewRunShutdown(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `ListenAddr = 127.0.0.1:0
LogDir =
LogLevel = error
Database = `+filepath.Join(dir, "data", "songs.db")+`

[slack]
bot_token = xoxb-test
signing_secret = secret

[youtube]
api_key =
`)

	app, err := New(context.Background(), path, BuildInfo{BinVersion: "test"})
	require.NoError(t, err)
	require.NotNil(t, app.Dispatcher)
	assert.NotNil(t, app.Dispatcher.Fallback)
	assert.False(t, app.Dispatcher.Fallback.Enabled())
	assert.FileExists(t, filepath.Join(dir, "data", "songs.db"))
	assert.Equal(t, []string{"slack", "youtube"}, app.Config.Sections())
	assert.Equal(t, 4, app.Pool.Size())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- app.Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	assert.NoError(t, app.Shutdown(shutdownCtx))
}

type mapConfig map[string]any

func (m mapConfig) GetString(key string) string {
	s, _ := m[key].(string)
	return s
}

func (m mapConfig) GetInt(key string) int {
	n, _ := m[key].(int)
	return n
}

func (m mapConfig) GetFloat64(key string) float64 {
	f, _ := m[key].(float64)
	return f
}

func (m mapConfig) GetBool(key string) bool {
	b, _ := m[key].(bool)
	return b
}

func (m mapConfig) GetSeconds(key string, fallback time.Duration) time.Duration {
	if n := m.GetInt(key); n > 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func TestChatRateLimitFallbacks(t *testing.T) {
	perSecond, burst := chatRateLimit(mapConfig{})
	assert.Equal(t, 1.0, perSecond)
	assert.Equal(t, 3, burst)

	perSecond, burst = chatRateLimit(mapConfig{"slack.rate_limit_per_second": 0.5, "slack.rate_limit_burst": 7})
	assert.Equal(t, 0.5, perSecond)
	assert.Equal(t, 7, burst)
}

func TestUpstreamOptions(t *testing.T) {
	conf := mapConfig{
		"songlink.api_url":             "http://songlink.local",
		"songlink.user_country":        "JP",
		"songlink.requests_per_minute": 60,
		"youtube.api_key":              "  key  ",
		"youtube.timeout":              3,
	}

	sl := songlinkOptions(conf)
	assert.Equal(t, "http://songlink.local", sl.APIURL)
	assert.Equal(t, "JP", sl.UserCountry)
	assert.Equal(t, 60, sl.RequestsPerMinute)
	assert.Equal(t, 10*time.Second, sl.Timeout)

	yt := youtubeOptions(conf)
	assert.Equal(t, "key", yt.APIKey)
	assert.Equal(t, 3*time.Second, yt.Timeout)
}
