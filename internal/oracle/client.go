// Package oracle is the resilient request layer in front of the remote
// autocomplete service.
//
// A Client turns one logical query for a prefix into as many HTTP attempts
// as it takes (up to Config.MaxAttempts), paying a pacing delay before every
// attempt and backing off when the server throttles or misbehaves. The
// pacing state adapts over the run and is shared by every caller of the
// client.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/steveyegge/acsweep/internal/events"
)

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 8 << 20

// Config holds the request-layer settings of a run.
type Config struct {
	BaseURL string // e.g. http://host:8000
	Path    string // e.g. /v1/autocomplete
	Param   string // query parameter carrying the prefix

	// PageParam carries the page token on follow-up page requests.
	// Empty disables paging.
	PageParam string

	InterRequestDelay time.Duration // pacing floor paid before every attempt
	RetryDelay        time.Duration // baseline wait after a failed attempt
	MaxRetryDelay     time.Duration // cap on the retry delay, 0 = uncapped
	MaxAttempts       int           // attempts per prefix before giving up
	RateLimitStatus   int           // status code that signals throttling
	RequestTimeout    time.Duration // hard timeout per attempt, 0 = none

	MaxRPS      float64 // global request ceiling, 0 = disabled
	MaxInFlight int     // concurrent attempts, 0 = unlimited

	Breaker BreakerConfig

	UserAgent string
}

// BreakerConfig configures the circuit breaker.
type BreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	SuccessThreshold int
	OpenTimeout      time.Duration
}

// Client issues paced, retried prefix queries.
type Client struct {
	cfg      Config
	endpoint *url.URL
	http     *http.Client
	backoff  *Backoff
	limiter  *rate.Limiter
	sem      *semaphore.Weighted
	breaker  *CircuitBreaker

	logger *zap.Logger
	sink   events.Sink
	runID  string
	sleep  func(context.Context, time.Duration) error

	requests    atomic.Int64
	attempts    atomic.Int64
	rateLimited atomic.Int64
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for per-attempt debug output.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithEvents routes rate-limit, retry and breaker events to sink.
func WithEvents(runID string, sink events.Sink) Option {
	return func(c *Client) {
		c.runID = runID
		c.sink = sink
	}
}

// WithSleep replaces the context-aware sleep used for pacing and backoff.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// New creates a client for cfg.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	endpoint, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", cfg.BaseURL+cfg.Path, err)
	}
	if endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q: scheme and host required", endpoint)
	}
	if cfg.Param == "" {
		cfg.Param = "query"
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.RateLimitStatus == 0 {
		cfg.RateLimitStatus = http.StatusTooManyRequests
	}

	c := &Client{
		cfg:      cfg,
		endpoint: endpoint,
		http:     &http.Client{},
		backoff:  NewBackoff(cfg.InterRequestDelay, cfg.RetryDelay, cfg.MaxRetryDelay),
		logger:   zap.NewNop(),
		sink:     events.Discard,
		sleep:    sleepCtx,
	}
	if cfg.MaxRPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.MaxRPS), 1)
	}
	if cfg.MaxInFlight > 0 {
		c.sem = semaphore.NewWeighted(int64(cfg.MaxInFlight))
	}
	for _, opt := range opts {
		opt(c)
	}
	if cfg.Breaker.Enabled {
		c.breaker = NewCircuitBreaker(cfg.Breaker.FailureThreshold, cfg.Breaker.SuccessThreshold, cfg.Breaker.OpenTimeout)
		c.breaker.onChange = func(from, to CircuitState, failures int) {
			c.sink.Emit(events.NewCircuitBreakerEvent(c.runID, events.CircuitBreakerData{
				From: from.String(), To: to.String(), Failures: failures,
			}))
		}
	}
	return c, nil
}

// Backoff exposes the shared pacing state.
func (c *Client) Backoff() *Backoff { return c.backoff }

// Breaker returns the circuit breaker, or nil when disabled.
func (c *Client) Breaker() *CircuitBreaker { return c.breaker }

// Requests is the number of logical queries issued.
func (c *Client) Requests() int64 { return c.requests.Load() }

// Attempts is the number of HTTP attempts made, retries included.
func (c *Client) Attempts() int64 { return c.attempts.Load() }

// RateLimitHits is the number of attempts the server throttled.
func (c *Client) RateLimitHits() int64 { return c.rateLimited.Load() }

// URL returns the request URL for prefix.
func (c *Client) URL(prefix string) string {
	return c.pageURL(prefix, "")
}

func (c *Client) pageURL(prefix, page string) string {
	u := *c.endpoint
	q := u.Query()
	q.Set(c.cfg.Param, prefix)
	if page != "" && c.cfg.PageParam != "" {
		q.Set(c.cfg.PageParam, page)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Query fetches the raw response body for prefix.
//
// On failure the error is a *QueryError (matching ErrRequestExhausted) or
// the context's error if ctx ended first.
func (c *Client) Query(ctx context.Context, prefix string) ([]byte, error) {
	c.requests.Add(1)
	return c.fetch(ctx, prefix, "")
}

// QueryPage fetches a follow-up page of prefix's results. It is paced and
// retried like Query and counts toward Attempts, but it belongs to the
// logical query that returned the page token, so Requests is unchanged.
func (c *Client) QueryPage(ctx context.Context, prefix, page string) ([]byte, error) {
	if c.cfg.PageParam == "" {
		return nil, fmt.Errorf("paging is not configured")
	}
	return c.fetch(ctx, prefix, page)
}

func (c *Client) fetch(ctx context.Context, prefix, page string) ([]byte, error) {
	if c.sem != nil {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer c.sem.Release(1)
	}
	if c.breaker != nil {
		if err := c.breaker.Wait(ctx, c.sleep); err != nil {
			return nil, err
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		// Pacing is a floor, paid even on the first attempt.
		if err := c.sleep(ctx, c.backoff.InterDelay()); err != nil {
			return nil, err
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		c.attempts.Add(1)
		body, err := c.do(ctx, prefix, page)
		if err == nil {
			c.backoff.Succeeded()
			if c.breaker != nil {
				c.breaker.RecordSuccess()
			}
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err

		var wait time.Duration
		if errors.Is(err, ErrRateLimited) {
			c.rateLimited.Add(1)
			wait = c.backoff.RateLimited()
			state := c.backoff.Snapshot()
			data := events.RateLimitedData{
				Attempt:      attempt,
				WaitMs:       wait.Milliseconds(),
				RetryDelayMs: state.RetryDelay.Milliseconds(),
				InterDelayMs: state.InterDelay.Milliseconds(),
			}
			var se *StatusError
			if errors.As(err, &se) {
				data.Status = se.Status
			}
			c.sink.Emit(events.NewRateLimitedEvent(c.runID, prefix, data))
		} else {
			wait = c.backoff.Failed()
			c.sink.Emit(events.NewRetryEvent(c.runID, prefix, events.RetryData{
				Attempt: attempt,
				WaitMs:  wait.Milliseconds(),
				Error:   err.Error(),
			}))
		}

		// No point waiting after the last attempt.
		if attempt == c.cfg.MaxAttempts {
			break
		}
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	if c.breaker != nil {
		c.breaker.RecordFailure()
	}
	return nil, &QueryError{Prefix: prefix, Attempts: c.cfg.MaxAttempts, Err: lastErr}
}

// do performs a single attempt.
func (c *Client) do(ctx context.Context, prefix, page string) ([]byte, error) {
	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL(prefix, page), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransient, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("oracle response",
		zap.String("prefix", prefix),
		zap.String("page", page),
		zap.Int("status", resp.StatusCode))

	if resp.StatusCode == c.cfg.RateLimitStatus {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &StatusError{Status: resp.StatusCode, Kind: ErrRateLimited}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &StatusError{Status: resp.StatusCode, Kind: ErrTransient}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", ErrTransient, err)
	}
	return body, nil
}

// sleepCtx waits for d or until ctx is done. It reports ctx's error even
// for d <= 0 so callers get a cancellation check for free.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
