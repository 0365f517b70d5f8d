package songlink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/liuran001/SongShare-Go/bot"
	"github.com/liuran001/SongShare-Go/bot/platform"
	"github.com/liuran001/SongShare-Go/bot/telemetry"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	serviceName    = "songlink"
	DefaultAPIURL  = "https://api.song.link/v1-alpha.1/links"
	maxBodyBytes   = 4 << 20
	defaultTimeout = 10 * time.Second
)

// videoPlatforms are checked in order; the first present link wins.
var videoPlatforms = []string{"youtube", "youtubeMusic"}

// Options configures a Client.
type Options struct {
	APIURL            string
	APIKey            string
	UserCountry       string
	Timeout           time.Duration
	RequestsPerMinute int
	MaxRetries        int
}

// Client resolves music links through the song.link lookup API.
type Client struct {
	apiURL      string
	apiKey      string
	userCountry string
	timeout     time.Duration
	http        *retryablehttp.Client
	breaker     *gobreaker.CircuitBreaker
	limiter     *rate.Limiter
	logger      bot.Logger
}

type linksResponse struct {
	EntityUniqueID     *string                 `json:"entityUniqueId"`
	UserCountry        *string                 `json:"userCountry"`
	PageURL            *string                 `json:"pageUrl"`
	LinksByPlatform    map[string]platformLink `json:"linksByPlatform"`
	EntitiesByUniqueID map[string]entity       `json:"entitiesByUniqueId"`
}

type platformLink struct {
	URL            *string `json:"url"`
	EntityUniqueID *string `json:"entityUniqueId"`
}

type entity struct {
	ID         *string `json:"id"`
	Type       *string `json:"type"`
	Title      *string `json:"title"`
	ArtistName *string `json:"artistName"`
}

// New creates a lookup client with retry, circuit breaker and rate limiting.
func New(opts Options, logger bot.Logger) *Client {
	apiURL := strings.TrimSpace(opts.APIURL)
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := retryablehttp.NewClient()
	client.RetryMax = opts.MaxRetries
	if client.RetryMax < 0 {
		client.RetryMax = 0
	}
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.Logger = nil
	client.CheckRetry = checkRetry
	// Keep the final response so its status can be classified.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	settings := gobreaker.Settings{
		Name:        "songlink-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			telemetry.UpdateCircuitGauge(serviceName, to == gobreaker.StateOpen)
			if logger != nil {
				logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			}
		},
	}

	var limiter *rate.Limiter
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}

	return &Client{
		apiURL:      apiURL,
		apiKey:      strings.TrimSpace(opts.APIKey),
		userCountry: strings.TrimSpace(opts.UserCountry),
		timeout:     timeout,
		http:        client,
		breaker:     gobreaker.NewCircuitBreaker(settings),
		limiter:     limiter,
		logger:      logger,
	}
}

// checkRetry retries transport failures and 5xx answers, never 429.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// Resolve looks up link and classifies the answer. Expected HTTP failures come
// back as a Failed resolution; only transport-level problems return an error.
func (c *Client) Resolve(ctx context.Context, link string) (platform.Resolution, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return platform.Resolution{}, platform.NewTransportError(serviceName, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(link), nil)
	if err != nil {
		return platform.Resolution{}, fmt.Errorf("build songlink request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.http.Do(req)
	})
	if err != nil {
		telemetry.ObserveUpstream(serviceName, 0, time.Since(start))
		return platform.Resolution{}, platform.NewTransportError(serviceName, err)
	}
	resp := out.(*http.Response)
	defer resp.Body.Close()
	telemetry.ObserveUpstream(serviceName, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		if c.logger != nil {
			c.logger.Warn("songlink lookup failed", "url", link, "status", resp.StatusCode)
		}
		return platform.FailedFromStatus(resp.StatusCode), nil
	}

	var body linksResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return platform.Resolution{}, &platform.ServiceError{
			Service: serviceName,
			Status:  resp.StatusCode,
			Err:     fmt.Errorf("%w: decode response: %v", platform.ErrUpstream, err),
		}
	}

	return body.resolution(resp.StatusCode), nil
}

func (c *Client) requestURL(link string) string {
	params := url.Values{}
	params.Set("url", link)
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	if c.userCountry != "" {
		params.Set("userCountry", c.userCountry)
	}
	sep := "?"
	if strings.Contains(c.apiURL, "?") {
		sep = "&"
	}
	return c.apiURL + sep + params.Encode()
}

func (r *linksResponse) resolution(status int) platform.Resolution {
	pageURL := value(r.PageURL)
	if pageURL == "" {
		return platform.Failed(platform.ReasonNoMatch, status)
	}
	return platform.Resolved(pageURL, r.videoURL(), r.title())
}

func (r *linksResponse) videoURL() string {
	for _, name := range videoPlatforms {
		link, ok := r.LinksByPlatform[name]
		if !ok {
			continue
		}
		if u := value(link.URL); u != "" {
			return u
		}
	}
	return ""
}

func (r *linksResponse) title() string {
	id := value(r.EntityUniqueID)
	if id == "" {
		return ""
	}
	ent, ok := r.EntitiesByUniqueID[id]
	if !ok {
		return ""
	}
	title := strings.TrimSpace(value(ent.Title))
	artist := strings.TrimSpace(value(ent.ArtistName))
	switch {
	case title == "":
		return ""
	case artist == "":
		return title
	default:
		return artist + " - " + title
	}
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
