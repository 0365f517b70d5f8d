package youtube

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/liuran001/SongShare-Go/bot/platform"
	"github.com/liuran001/SongShare-Go/bot/telemetry"
	"github.com/sony/gobreaker"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

const (
	searchService = "youtube"
	// musicCategoryID is the YouTube "Music" video category.
	musicCategoryID = "10"
	watchURLPrefix  = "https://www.youtube.com/watch?v="
)

// SearchClient finds a single music video for a text query.
type SearchClient struct {
	svc     *yt.Service
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
}

// NewSearchClient creates a YouTube Data API client authenticated by apiKey.
// endpoint overrides the API base URL when non-empty.
func NewSearchClient(ctx context.Context, apiKey, endpoint string, timeout time.Duration) (*SearchClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("youtube api key required")
	}

	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
		if !strings.HasSuffix(endpoint, "/") {
			endpoint += "/"
		}
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	settings := gobreaker.Settings{
		Name:        "youtube-search",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(_ string, _, to gobreaker.State) {
			telemetry.UpdateCircuitGauge(searchService, to == gobreaker.StateOpen)
		},
	}

	return &SearchClient{svc: svc, timeout: timeout, breaker: gobreaker.NewCircuitBreaker(settings)}, nil
}

// SearchVideo returns the watch URL of the top music video for query.
func (s *SearchClient) SearchVideo(ctx context.Context, query string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	out, err := s.breaker.Execute(func() (interface{}, error) {
		return s.svc.Search.List([]string{"snippet"}).
			Q(query).
			Type("video").
			VideoCategoryId(musicCategoryID).
			MaxResults(1).
			Context(ctx).
			Do()
	})
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			telemetry.ObserveUpstream(searchService, apiErr.Code, time.Since(start))
			return "", &platform.ServiceError{Service: searchService, Status: apiErr.Code, Err: fmt.Errorf("%w: %v", platform.ErrNoFallback, apiErr.Message)}
		}
		telemetry.ObserveUpstream(searchService, 0, time.Since(start))
		return "", platform.NewTransportError(searchService, err)
	}
	telemetry.ObserveUpstream(searchService, 200, time.Since(start))

	resp := out.(*yt.SearchListResponse)
	for _, item := range resp.Items {
		if item == nil || item.Id == nil || item.Id.VideoId == "" {
			continue
		}
		return watchURLPrefix + item.Id.VideoId, nil
	}
	return "", platform.NewNoFallbackError(searchService, "no search results")
}
