package slack

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/liuran001/SongShare-Go/bot"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per channel.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
	logger   bot.Logger
}

func NewRateLimiter(msgPerSec float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(msgPerSec),
		burst:    burst,
	}
}

func (rl *RateLimiter) SetLogger(logger bot.Logger) {
	rl.logger = logger
}

func (rl *RateLimiter) logError(msg string, args ...any) {
	if rl.logger != nil {
		rl.logger.Error(msg, args...)
	}
}

func (rl *RateLimiter) getLimiter(channel string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[channel]
	rl.mu.RUnlock()

	if exists {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, exists := rl.limiters[channel]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(rl.rate, rl.burst)
	rl.limiters[channel] = limiter
	return limiter
}

func (rl *RateLimiter) Wait(ctx context.Context, channel string) error {
	return rl.getLimiter(channel).Wait(ctx)
}

// APIError is a non-2xx answer from the chat API.
type APIError struct {
	Code       int
	Message    string
	RetryAfter int
}

var retryAfterPattern = regexp.MustCompile(`(?i)retry\s+after[:\s]+(\d+)`)

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("slack api: %d %s", e.Code, e.Message)
	}
	return "slack api: " + e.Message
}

func parseRetryAfter(err error) (int, bool) {
	if err == nil {
		return 0, false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.RetryAfter > 0 {
			return apiErr.RetryAfter, true
		}
		if apiErr.Code == 429 {
			return 1, true
		}
	}

	if matches := retryAfterPattern.FindStringSubmatch(err.Error()); len(matches) == 2 {
		if parsed, parseErr := strconv.Atoi(matches[1]); parseErr == nil {
			return parsed, parsed > 0
		}
	}
	return 0, false
}

// WithRetry waits for the channel's token before each attempt and retries fn
// while it fails with a retry-after hint.
func WithRetry(ctx context.Context, rl *RateLimiter, channel string, fn func() error) error {
	if fn == nil {
		return nil
	}
	if rl == nil {
		return fn()
	}
	maxRetries := 3
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := rl.Wait(ctx, channel); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		retryAfter, shouldRetry := parseRetryAfter(err)
		if !shouldRetry {
			return err
		}

		if attempt < maxRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(retryAfter) * time.Second):
			}
		}
	}

	rl.logError("chat api retries exhausted", "channel", channel, "error", lastErr)
	return &APIError{Code: 429, Message: "max retries exceeded"}
}
