package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/liuran001/SongShare-Go/bot"
	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

// EnvPrefix is prepended to every environment override, e.g. SONGSHARE_SLACK_BOT_TOKEN.
const EnvPrefix = "SONGSHARE"

var _ bot.Config = (*Config)(nil)

// Config wraps viper and provides typed accessors.
type Config struct {
	v        *viper.Viper
	sections []string
}

// Load reads an INI config file and prepares defaults.
// INI sections are exposed as "section.key"; environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	c := &Config{v: v}
	if strings.TrimSpace(path) == "" {
		return c, nil
	}

	if strings.EqualFold(filepath.Ext(path), ".ini") {
		sections, err := loadINI(v, path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		c.sections = sections
		return c, nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenAddr", ":3000")
	v.SetDefault("EventsPath", "/slack/events")
	v.SetDefault("Database", "songshare.db")
	v.SetDefault("DBMaxOpenConns", 1)
	v.SetDefault("DBMaxIdleConns", 1)
	v.SetDefault("DBConnMaxLifetimeSec", 3600)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFormat", "text")
	v.SetDefault("LogSource", false)
	v.SetDefault("LogDir", "./log")
	v.SetDefault("GormLogLevel", "warn")
	v.SetDefault("GormSlowQueryMs", 200)
	v.SetDefault("WorkerPoolSize", 4)
	v.SetDefault("WorkerQueueSize", 64)

	v.SetDefault("slack.api_url", "https://slack.com/api")
	v.SetDefault("slack.rate_limit_per_second", 1.0)
	v.SetDefault("slack.rate_limit_burst", 3)

	v.SetDefault("songlink.api_url", "https://api.song.link/v1-alpha.1/links")
	v.SetDefault("songlink.timeout", 10)
	v.SetDefault("songlink.requests_per_minute", 10)
	v.SetDefault("songlink.max_retries", 2)

	v.SetDefault("youtube.timeout", 10)
	v.SetDefault("youtube.user_agent", "facebookexternalhit/1.1 (+http://www.facebook.com/externalhit_uatext.php)")

	// Bound so AllKeys sees secrets that only arrive through the environment.
	for _, key := range []string{"slack.bot_token", "slack.signing_secret", "songlink.api_key", "songlink.user_country", "youtube.api_key", "youtube.api_url"} {
		_ = v.BindEnv(key)
	}
}

// GetString returns a string value.
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt returns an int value.
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 returns a float64 value.
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool returns a bool value.
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetSeconds reads an integer number of seconds as a duration.
// Non-positive values yield fallback.
func (c *Config) GetSeconds(key string, fallback time.Duration) time.Duration {
	secs := c.v.GetInt(key)
	if secs <= 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

// Sections returns the INI section names found in the loaded file.
func (c *Config) Sections() []string {
	if len(c.sections) == 0 {
		return nil
	}
	out := make([]string, len(c.sections))
	copy(out, c.sections)
	return out
}

// loadINI merges the file as the config layer so env vars still take precedence.
func loadINI(v *viper.Viper, path string) ([]string, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}

	values := make(map[string]any)
	for _, key := range cfg.Section("").Keys() {
		values[key.Name()] = key.Value()
	}

	var sections []string
	for _, section := range cfg.Sections() {
		name := section.Name()
		if name == "" || name == ini.DefaultSection {
			continue
		}
		nested := make(map[string]any)
		for _, key := range section.Keys() {
			nested[key.Name()] = key.Value()
		}
		values[strings.ToLower(name)] = nested
		sections = append(sections, strings.ToLower(name))
	}
	sort.Strings(sections)

	if err := v.MergeConfigMap(values); err != nil {
		return nil, err
	}
	return sections, nil
}
