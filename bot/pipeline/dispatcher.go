package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/liuran001/SongShare-Go/bot"
	"github.com/liuran001/SongShare-Go/bot/platform"
	"github.com/liuran001/SongShare-Go/bot/reply"
	"github.com/liuran001/SongShare-Go/bot/slack"
	"github.com/liuran001/SongShare-Go/bot/telemetry"
)

// LinkExtractor finds music links in message text.
type LinkExtractor interface {
	Extract(text string) []string
	Platform(link string) string
}

// LinkResolver maps a link to its canonical form.
type LinkResolver interface {
	Resolve(ctx context.Context, link string) (platform.Resolution, error)
}

// FallbackResolver is consulted when LinkResolver fails.
type FallbackResolver interface {
	Enabled() bool
	Resolve(ctx context.Context, link string) (platform.Resolution, error)
}

// Poster sends thread replies.
type Poster interface {
	PostMessage(ctx context.Context, msg slack.Message) (*slack.PostMessageResponse, error)
}

// ShareRecorder persists resolved shares.
type ShareRecorder interface {
	RecordShare(ctx context.Context, song *bot.SharedSong) (bool, error)
}

// Dispatcher drives one message through extraction, resolution, storage and reply.
type Dispatcher struct {
	Extractor LinkExtractor
	Resolver  LinkResolver
	Fallback  FallbackResolver
	Store     ShareRecorder
	Poster    Poster
	Composer  *reply.Composer
	Logger    bot.Logger
}

// Process handles every music link in evt, one at a time and in message
// order. Failures are isolated per link and only logged.
func (d *Dispatcher) Process(ctx context.Context, evt bot.MessageEvent) {
	if evt.FromBot() || evt.Text == "" {
		return
	}

	links := d.Extractor.Extract(evt.Text)
	if len(links) == 0 {
		return
	}
	telemetry.CountLinks(len(links))

	logger := d.Logger
	if logger != nil {
		logger = logger.With("channel", evt.ChannelID, "ts", evt.TS, "corr", telemetry.GetCorrelation(ctx))
		logger.Debug("processing message", "links", len(links))
	}

	telemetry.TimeFunc(telemetry.DispatchDuration, func() {
		seen := make(map[string]struct{}, len(links))
		for _, link := range links {
			// Same natural key within one message: handle once.
			if _, dup := seen[link]; dup {
				continue
			}
			seen[link] = struct{}{}
			d.handleLink(ctx, evt, link, logger)
		}
	})
}

func (d *Dispatcher) handleLink(ctx context.Context, evt bot.MessageEvent, link string, logger bot.Logger) {
	platformName := d.Extractor.Platform(link)
	if logger != nil {
		logger = logger.With("url", link, "platform", platformName)
	}

	defer func() {
		if r := recover(); r != nil {
			telemetry.CountPanic()
			if logger != nil {
				logger.Error("panic while handling link", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			}
		}
	}()

	res, err := d.Resolver.Resolve(ctx, link)
	if err != nil {
		telemetry.CountResolution("error", "transport")
		if logger != nil {
			logger.Error("resolve link failed", "error", err)
		}
		return
	}

	if res.AllowsFallback() {
		res = d.tryFallback(ctx, link, res, logger)
	}
	telemetry.CountResolution(res.Outcome.String(), res.Reason.String())

	out := d.Composer.Compose(res)
	if out.Persist {
		d.record(ctx, evt, link, platformName, res, logger)
	}
	d.post(ctx, evt, out.Text, logger)
}

func (d *Dispatcher) tryFallback(ctx context.Context, link string, failed platform.Resolution, logger bot.Logger) platform.Resolution {
	if d.Fallback == nil || !d.Fallback.Enabled() {
		telemetry.CountFallback("disabled")
		return failed
	}

	res, err := d.Fallback.Resolve(ctx, link)
	if err != nil {
		if errors.Is(err, platform.ErrNoFallback) {
			telemetry.CountFallback("empty")
			if logger != nil {
				logger.Info("no fallback available", "reason", failed.Reason.String(), "status", failed.StatusCode, "error", err)
			}
		} else {
			telemetry.CountFallback("error")
			if logger != nil {
				logger.Warn("fallback lookup failed", "reason", failed.Reason.String(), "status", failed.StatusCode, "error", err)
			}
		}
		return failed
	}

	telemetry.CountFallback("found")
	return res
}

func (d *Dispatcher) record(ctx context.Context, evt bot.MessageEvent, link, platformName string, res platform.Resolution, logger bot.Logger) {
	if d.Store == nil {
		return
	}
	inserted, err := d.Store.RecordShare(ctx, &bot.SharedSong{
		OriginalURL:  link,
		CanonicalURL: res.CanonicalURL,
		VideoURL:     res.VideoURL,
		Title:        res.Title,
		Platform:     platformName,
		UserID:       evt.UserID,
		ChannelID:    evt.ChannelID,
		MessageTS:    evt.TS,
	})
	switch {
	case err != nil:
		telemetry.CountShare("error")
		if logger != nil {
			logger.Error("record share failed", "error", err)
		}
	case !inserted:
		telemetry.CountShare("duplicate")
		if logger != nil {
			logger.Debug("share already recorded")
		}
	default:
		telemetry.CountShare("inserted")
	}
}

func (d *Dispatcher) post(ctx context.Context, evt bot.MessageEvent, text string, logger bot.Logger) {
	msg := slack.Message{
		Channel:     evt.ChannelID,
		Text:        text,
		ThreadTS:    threadRoot(evt),
		UnfurlLinks: true,
		UnfurlMedia: true,
	}

	resp, err := d.Poster.PostMessage(ctx, msg)
	if err != nil {
		if slack.IsRateLimited(err) {
			telemetry.CountReply("rate_limited")
			if logger != nil {
				logger.Warn("reply dropped: chat api still rate limiting after retries", "error", err)
			}
			return
		}
		telemetry.CountReply("error")
		if logger != nil {
			logger.Error("post reply failed", "error", err)
		}
		return
	}
	if resp == nil || resp.OK {
		telemetry.CountReply("ok")
		return
	}

	telemetry.CountReply("app_error")
	if logger != nil {
		logger.Warn("chat api rejected reply", "error", resp.Error)
	}

	msg.Text = reply.PostFailureNotice(resp.Error)
	if _, err := d.Poster.PostMessage(ctx, msg); err != nil && logger != nil {
		logger.Warn("post failure notice failed", "error", err)
	}
}

// threadRoot is the timestamp replies hang off: the message itself, or its
// parent when the message is already a thread reply.
func threadRoot(evt bot.MessageEvent) string {
	if evt.ThreadTS != "" {
		return evt.ThreadTS
	}
	return evt.TS
}
