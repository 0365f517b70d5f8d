package youtube

import (
	"context"
	"time"

	"github.com/liuran001/SongShare-Go/bot"
	"github.com/liuran001/SongShare-Go/bot/platform"
)

const defaultTimeout = 10 * time.Second

// Options configures the fallback resolver.
type Options struct {
	APIKey    string
	APIURL    string
	Timeout   time.Duration
	UserAgent string
}

// Fallback finds a best-effort video for links the lookup service could not resolve.
type Fallback struct {
	pages  *PageClient
	search *SearchClient
	logger bot.Logger
}

// New creates a fallback resolver. Without an API key the resolver is
// returned disabled rather than failing.
func New(ctx context.Context, opts Options, logger bot.Logger) (*Fallback, error) {
	f := &Fallback{logger: logger}
	if opts.APIKey == "" {
		return f, nil
	}

	search, err := NewSearchClient(ctx, opts.APIKey, opts.APIURL, opts.Timeout)
	if err != nil {
		return nil, err
	}
	f.search = search
	f.pages = NewPageClient(opts.UserAgent, opts.Timeout)
	return f, nil
}

// Enabled reports whether a search credential is configured.
func (f *Fallback) Enabled() bool {
	return f != nil && f.search != nil && f.pages != nil
}

// Resolve derives a query from link's page title and searches for a video.
// Every path that finds nothing returns an error wrapping platform.ErrNoFallback.
func (f *Fallback) Resolve(ctx context.Context, link string) (platform.Resolution, error) {
	if !f.Enabled() {
		return platform.Resolution{}, platform.NewNoFallbackError(searchService, "fallback disabled")
	}

	title, err := f.pages.FetchTitle(ctx, link)
	if err != nil {
		return platform.Resolution{}, err
	}

	query, ok := QueryFromTitle(title)
	if !ok {
		return platform.Resolution{}, platform.NewNoFallbackError(pageService, "no usable page title")
	}
	if f.logger != nil {
		f.logger.Debug("fallback search", "url", link, "query", query)
	}

	videoURL, err := f.search.SearchVideo(ctx, query)
	if err != nil {
		return platform.Resolution{}, err
	}
	return platform.FallbackResolved(videoURL, query), nil
}
