// Package ratelimit retries HTTP requests the server rejected with 429,
// waiting for Retry-After or an exponential backoff between attempts.
package ratelimit

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"taskpad/internal/utils"
)

// Defaults
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 500 * time.Millisecond
	DefaultMaxDelay   = 8 * time.Second
)

// Config holds retry settings. Zero values select the defaults.
type Config struct {
	MaxRetries int // a negative value disables retries
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Jitter     bool // vary each delay by ±20%
}

// BuildFunc creates a fresh request for each attempt, so bodies can be re-sent
type BuildFunc func(ctx context.Context) (*http.Request, error)

// Client wraps an *http.Client with 429 handling
type Client struct {
	http       *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	jitter     bool

	limited atomic.Int64
}

// NewClient wraps hc, or http.DefaultClient when hc is nil
func NewClient(hc *http.Client, cfg Config) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	c := &Client{
		http:       hc,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		maxDelay:   cfg.MaxDelay,
		jitter:     cfg.Jitter,
	}
	if c.maxRetries == 0 {
		c.maxRetries = DefaultMaxRetries
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	if c.baseDelay <= 0 {
		c.baseDelay = DefaultBaseDelay
	}
	if c.maxDelay <= 0 {
		c.maxDelay = DefaultMaxDelay
	}
	return c
}

// HTTPClient returns the wrapped client
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Limited returns how many 429 responses the client has seen
func (c *Client) Limited() int64 {
	return c.limited.Load()
}

// Do sends the request built by build. A 429 response is retried up to
// MaxRetries times; any other response is returned to the caller. Transport
// errors are returned immediately.
func (c *Client) Do(ctx context.Context, build BuildFunc) (*http.Response, error) {
	var lastWait time.Duration
	for attempt := 0; ; attempt++ {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		_ = resp.Body.Close()
		c.limited.Add(1)
		if attempt >= c.maxRetries {
			return nil, &LimitError{Attempts: attempt + 1, RetryAfter: lastWait}
		}

		wait := c.Backoff(attempt, ParseRetryAfter(resp.Header.Get("Retry-After")))
		lastWait = wait
		utils.Debugf("Rate limited on %s %s, retrying in %s", req.Method, req.URL.Path, wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// Backoff returns the wait before retry attempt+1. A server-provided
// Retry-After wins over the exponential schedule, capped at MaxDelay.
func (c *Client) Backoff(attempt int, retryAfter *time.Duration) time.Duration {
	if retryAfter != nil {
		return min(*retryAfter, c.maxDelay)
	}

	delay := c.maxDelay
	if attempt < 30 {
		delay = min(c.baseDelay<<attempt, c.maxDelay)
	}
	if c.jitter {
		delay = time.Duration(float64(delay) * (0.8 + rand.Float64()*0.4))
	}
	return delay
}

// LimitError is returned once every retry was answered with 429
type LimitError struct {
	Attempts   int
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limited after %d attempts", e.Attempts)
}

// ParseRetryAfter reads a Retry-After value in seconds or HTTP-date form.
// It returns nil when the value is empty or malformed.
func ParseRetryAfter(value string) *time.Duration {
	if value == "" {
		return nil
	}
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		if seconds < 0 {
			return nil
		}
		d := time.Duration(seconds) * time.Second
		return &d
	}
	if t, err := http.ParseTime(value); err == nil {
		d := max(time.Until(t), 0)
		return &d
	}
	return nil
}
