package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/liuran001/SongShare-Go/bot"
	"github.com/liuran001/SongShare-Go/bot/telemetry"
)

const (
	DefaultAPIURL = "https://slack.com/api"
	serviceName   = "slack"
	maxRespBytes  = 1 << 20
)

// Message is one chat.postMessage request.
type Message struct {
	Channel     string `json:"channel"`
	Text        string `json:"text"`
	ThreadTS    string `json:"thread_ts,omitempty"`
	UnfurlLinks bool   `json:"unfurl_links"`
	UnfurlMedia bool   `json:"unfurl_media"`
}

// PostMessageResponse is the chat API answer. OK=false carries an
// application-level failure in Error.
type PostMessageResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Channel string `json:"channel,omitempty"`
	TS      string `json:"ts,omitempty"`
}

// Client posts messages through the chat Web API.
type Client struct {
	apiURL  string
	token   string
	http    *retryablehttp.Client
	limiter *RateLimiter
	logger  bot.Logger
}

// NewClient creates a chat client. limiter may be nil.
func NewClient(apiURL, token string, limiter *RateLimiter, timeout time.Duration, logger bot.Logger) *Client {
	apiURL = strings.TrimRight(strings.TrimSpace(apiURL), "/")
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.Logger = nil
	client.HTTPClient.Timeout = timeout
	client.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		// 429 is retried by WithRetry honoring Retry-After.
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			return false, nil
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	if limiter != nil && logger != nil {
		limiter.SetLogger(logger)
	}

	return &Client{
		apiURL:  apiURL,
		token:   token,
		http:    client,
		limiter: limiter,
		logger:  logger,
	}
}

// PostMessage sends msg. Transport failures and non-2xx answers return an error;
// a 2xx answer with ok=false is returned as a response, not an error.
func (c *Client) PostMessage(ctx context.Context, msg Message) (*PostMessageResponse, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	var result *PostMessageResponse
	err = WithRetry(ctx, c.limiter, msg.Channel, func() error {
		resp, err := c.post(ctx, "chat.postMessage", payload)
		if err != nil {
			return err
		}
		result = resp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, method string, payload []byte) (*PostMessageResponse, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/"+method, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.token)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		telemetry.ObserveUpstream(serviceName, 0, time.Since(start))
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()
	telemetry.ObserveUpstream(serviceName, resp.StatusCode, time.Since(start))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRespBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", method, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Code: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, convErr := strconv.Atoi(v); convErr == nil {
				apiErr.RetryAfter = secs
			}
		}
		return nil, apiErr
	}

	var out PostMessageResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", method, err)
	}
	return &out, nil
}

// IsRateLimited reports whether err is a 429 from the chat API.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests
}
