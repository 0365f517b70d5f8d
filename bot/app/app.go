package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/liuran001/SongShare-Go/bot"
	"github.com/liuran001/SongShare-Go/bot/config"
	"github.com/liuran001/SongShare-Go/bot/db"
	logpkg "github.com/liuran001/SongShare-Go/bot/logger"
	"github.com/liuran001/SongShare-Go/bot/pipeline"
	"github.com/liuran001/SongShare-Go/bot/platform"
	"github.com/liuran001/SongShare-Go/bot/reply"
	"github.com/liuran001/SongShare-Go/bot/server"
	"github.com/liuran001/SongShare-Go/bot/slack"
	"github.com/liuran001/SongShare-Go/bot/telemetry"
	"github.com/liuran001/SongShare-Go/bot/worker"
	"github.com/liuran001/SongShare-Go/plugins/songlink"
	"github.com/liuran001/SongShare-Go/plugins/youtube"
	"golang.org/x/sync/errgroup"
)

// shutdownGrace bounds how long Run waits for in-flight requests after ctx ends.
const shutdownGrace = 10 * time.Second

// App wires all application dependencies.
type App struct {
	Config     *config.Config
	Logger     *logpkg.Logger
	DB         *db.Repository
	Pool       bot.WorkerPool
	Dispatcher *pipeline.Dispatcher
	Server     *server.Server
	Build      BuildInfo
}

// BuildInfo provides build-time metadata.
type BuildInfo struct {
	RuntimeVer string
	BinVersion string
	CommitSHA  string
	BuildTime  string
	BuildArch  string
}

// New builds the application container.
func New(ctx context.Context, configPath string, build BuildInfo) (*App, error) {
	conf, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	botToken := strings.TrimSpace(conf.GetString("slack.bot_token"))
	signingSecret := strings.TrimSpace(conf.GetString("slack.signing_secret"))
	if botToken == "" || signingSecret == "" {
		return nil, errors.New("slack.bot_token and slack.signing_secret are required")
	}

	log, err := logpkg.New(loggerOptions(conf))
	if err != nil {
		return nil, err
	}
	log.Info("config loaded", "path", configPath, "sections", conf.Sections())

	telemetry.Init()

	gormLogger := logpkg.NewGormLogger(log.Slog(), logpkg.GormLevel(conf.GetString("GormLogLevel")),
		logpkg.WithSlowThreshold(time.Duration(conf.GetInt("GormSlowQueryMs"))*time.Millisecond))
	repo, err := db.NewSQLiteRepository(conf.GetString("Database"), gormLogger)
	if err != nil {
		_ = log.Close()
		return nil, fmt.Errorf("init db: %w", err)
	}
	if err := repo.ConfigurePool(
		conf.GetInt("DBMaxOpenConns"),
		conf.GetInt("DBMaxIdleConns"),
		conf.GetSeconds("DBConnMaxLifetimeSec", time.Hour),
	); err != nil {
		_ = repo.Close()
		_ = log.Close()
		return nil, fmt.Errorf("configure db pool: %w", err)
	}

	extractor, err := platform.NewDefaultExtractor()
	if err != nil {
		_ = repo.Close()
		_ = log.Close()
		return nil, fmt.Errorf("init extractor: %w", err)
	}

	resolver := songlink.New(songlinkOptions(conf), log.With("component", "songlink"))

	fallback, err := youtube.New(ctx, youtubeOptions(conf), log.With("component", "youtube"))
	if err != nil {
		_ = repo.Close()
		_ = log.Close()
		return nil, fmt.Errorf("init youtube fallback: %w", err)
	}
	if !fallback.Enabled() {
		log.Info("video search fallback disabled: youtube.api_key not set")
	}

	rateLimitPerSecond, rateLimitBurst := chatRateLimit(conf)
	rateLimiter := slack.NewRateLimiter(rateLimitPerSecond, rateLimitBurst)
	rateLimiter.SetLogger(log)
	chat := slack.NewClient(conf.GetString("slack.api_url"), botToken, rateLimiter, 10*time.Second, log.With("component", "slack"))

	dispatcher := &pipeline.Dispatcher{
		Extractor: extractor,
		Resolver:  resolver,
		Fallback:  fallback,
		Store:     repo,
		Poster:    chat,
		Composer:  reply.NewComposer(),
		Logger:    log,
	}

	var pool bot.WorkerPool = worker.New(conf.GetInt("WorkerPoolSize"),
		worker.WithQueueSize(conf.GetInt("WorkerQueueSize")),
		worker.WithPanicHandler(func(r any) {
			telemetry.CountPanic()
			log.Error("dispatch task panicked", "panic", fmt.Sprint(r))
		}),
	)

	srv := server.New(server.Options{
		Addr:       conf.GetString("ListenAddr"),
		EventsPath: conf.GetString("EventsPath"),
		Logger:     log.With("component", "http"),
		Events: &server.EventsHandler{
			SigningSecret: signingSecret,
			Processor:     dispatcher,
			Pool:          pool,
			Logger:        log,
		},
	})

	return &App{
		Config:     conf,
		Logger:     log,
		DB:         repo,
		Pool:       pool,
		Dispatcher: dispatcher,
		Server:     srv,
		Build:      build,
	}, nil
}

func loggerOptions(conf bot.Config) logpkg.Options {
	return logpkg.Options{
		Level:     conf.GetString("LogLevel"),
		Format:    conf.GetString("LogFormat"),
		AddSource: conf.GetBool("LogSource"),
		Dir:       conf.GetString("LogDir"),
	}
}

func songlinkOptions(conf bot.Config) songlink.Options {
	return songlink.Options{
		APIURL:            conf.GetString("songlink.api_url"),
		APIKey:            conf.GetString("songlink.api_key"),
		UserCountry:       conf.GetString("songlink.user_country"),
		Timeout:           conf.GetSeconds("songlink.timeout", 10*time.Second),
		RequestsPerMinute: conf.GetInt("songlink.requests_per_minute"),
		MaxRetries:        conf.GetInt("songlink.max_retries"),
	}
}

func youtubeOptions(conf bot.Config) youtube.Options {
	return youtube.Options{
		APIKey:    strings.TrimSpace(conf.GetString("youtube.api_key")),
		APIURL:    conf.GetString("youtube.api_url"),
		Timeout:   conf.GetSeconds("youtube.timeout", 10*time.Second),
		UserAgent: conf.GetString("youtube.user_agent"),
	}
}

// chatRateLimit returns the per-channel reply rate; non-positive values fall back to 1/s burst 3.
func chatRateLimit(conf bot.Config) (perSecond float64, burst int) {
	perSecond = conf.GetFloat64("slack.rate_limit_per_second")
	if perSecond <= 0 {
		perSecond = 1.0
	}
	burst = conf.GetInt("slack.rate_limit_burst")
	if burst <= 0 {
		burst = 3
	}
	return perSecond, burst
}

// Run serves HTTP until ctx ends, then stops the listener gracefully.
func (a *App) Run(ctx context.Context) error {
	if a.Logger != nil {
		a.Logger.Info("songshare starting",
			"version", a.Build.BinVersion,
			"commit", a.Build.CommitSHA,
			"runtime", a.Build.RuntimeVer,
			"arch", a.Build.BuildArch,
			"workers", a.Pool.Size(),
		)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Server.ListenAndServe()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		return a.Server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Shutdown releases resources. Queued dispatches are drained first.
func (a *App) Shutdown(ctx context.Context) error {
	var firstErr error

	if a.Pool != nil {
		if err := a.Pool.Shutdown(ctx); err != nil {
			a.Pool.StopNow()
			if firstErr == nil {
				firstErr = fmt.Errorf("shutdown worker pool: %w", err)
			}
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			if a.Logger != nil {
				a.Logger.Error("failed to close database", "error", err)
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("close database: %w", err)
			}
		}
	}

	if a.Logger != nil {
		if err := a.Logger.Close(); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("close logger: %w", err)
			}
		}
	}

	return firstErr
}
