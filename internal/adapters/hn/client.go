// Package hn provides a resilient HackerNews Firebase v0 client
package hn

import (
	"context"
	"io"
	"net/http"
	"time"

	perr "newswire/internal/platform/errors"
	"newswire/internal/platform/logger"
)

const (
	baseURLDefault   = "https://hacker-news.firebaseio.com/v0"
	defaultTimeout   = 5 * time.Second
	defaultUA        = "newswire-ingest"
	defaultAttempts  = 3
	defaultRetryBase = 500 * time.Millisecond
)

// Options configures the Client
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration

	// Attempts is the total number of tries including the first
	Attempts  int
	RetryBase time.Duration
}

// Client is a minimal HackerNews REST client with bounded retries
type Client struct {
	http  *http.Client
	opts  Options
	log   logger.Logger
	now   func() time.Time
	sleep func(time.Duration)
}

// NewClient creates a new Client with sane defaults
func NewClient(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.Attempts <= 0 {
		o.Attempts = defaultAttempts
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	return &Client{
		http:  &http.Client{Timeout: o.Timeout},
		opts:  o,
		log:   *logger.Named("hn"),
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// Do issues a GET with retries on transport errors and retryable statuses
func (c *Client) Do(ctx context.Context, path string) (*http.Response, error) {
	url := c.opts.BaseURL + path
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "hn new request failed")
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", "application/json")

		start := c.now()
		resp, err := c.http.Do(req)
		lat := c.now().Sub(start)

		attempt++
		if err != nil {
			if !c.shouldRetry(attempt) {
				return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "hn request failed after %d attempts", attempt)
			}
			back := c.backoff(attempt)
			c.log.Warn().Dur("retry_in", back).Int("attempt", attempt).Msg("hn transport error retrying")
			c.sleep(back)
			continue
		}

		c.log.Debug().
			Str("path", path).
			Int("status", resp.StatusCode).
			Int("attempt", attempt).
			Dur("latency", lat).
			Msg("hn http response")

		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		if retryableStatus(resp.StatusCode) {
			if !c.shouldRetry(attempt) {
				code := perr.ErrorCodeUnavailable
				if resp.StatusCode == http.StatusTooManyRequests {
					code = perr.ErrorCodeTooManyRequests
				}
				_ = drainAndClose(resp.Body)
				return nil, perr.Newf(code, "hn status %d after %d attempts", resp.StatusCode, attempt)
			}
			back := c.backoff(attempt)
			c.log.Warn().Dur("retry_in", back).Int("attempt", attempt).Int("status", resp.StatusCode).
				Msg("hn retryable status backing off")
			_ = drainAndClose(resp.Body)
			c.sleep(back)
			continue
		}

		// read a small tail for diagnostics then return
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		_ = resp.Body.Close()
		return nil, perr.Newf(perr.ErrorCodeUnknown, "hn unexpected status %d body %s", resp.StatusCode, string(body))
	}
}

// backoff is exponential from RetryBase with a hard cap
func (c *Client) backoff(attempt int) time.Duration {
	d := c.opts.RetryBase
	ms := int64(d / time.Millisecond)
	ms = ms << uint(attempt-1)
	max := int64(10 * time.Second / time.Millisecond)
	if ms > max {
		ms = max
	}
	return time.Duration(ms) * time.Millisecond
}

func (c *Client) shouldRetry(attempt int) bool {
	return attempt < c.opts.Attempts
}
