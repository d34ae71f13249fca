// Package fetch is the HTTP client shared by the web collectors. It bounds
// every request, caps bodies, retries transient failures and remembers
// validators for conditional GETs.
//
// Validators from a 200 are only staged. The collector commits them once the
// consumer has stored everything the body held, so a scan that stopped short
// refetches the full document next time
package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	perr "newsroom/internal/platform/errors"
	"newsroom/internal/platform/logger"
)

const (
	defaultTimeout   = 20 * time.Second
	defaultUA        = "newsroom-collector/1.0"
	defaultMaxBytes  = 10 << 20
	defaultMaxRetry  = 2
	defaultRetryBase = 500 * time.Millisecond
	maxBackoff       = 10 * time.Second
)

// ErrTooLarge is returned when a body exceeds MaxBytes
var ErrTooLarge = errors.New("response body exceeds limit")

// Options configures the Client
type Options struct {
	UserAgent string
	Timeout   time.Duration
	MaxBytes  int64

	// Retries apply to transport errors, 429 and 5xx only
	MaxRetries int
	RetryBase  time.Duration

	// Conditional sends If-None-Match / If-Modified-Since from the last 200
	Conditional bool
}

// Result is a fetched document
type Result struct {
	URL         string // final URL after redirects
	Status      int
	ContentType string
	Body        []byte
	NotModified bool
}

type validators struct {
	etag    string
	lastMod string
}

// Client fetches documents for collectors
type Client struct {
	http  *http.Client
	opts  Options
	log   logger.Logger
	sleep func(context.Context, time.Duration) error

	mu     sync.Mutex
	cache  map[string]validators
	staged map[string]validators
}

// New fills defaults and builds a Client
func New(o Options) *Client {
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = defaultMaxBytes
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	} else if o.MaxRetries == 0 {
		o.MaxRetries = defaultMaxRetry
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	return &Client{
		http:   &http.Client{Timeout: o.Timeout},
		opts:   o,
		log:    *logger.Named("fetch"),
		sleep:  wait,
		cache:  map[string]validators{},
		staged: map[string]validators{},
	}
}

// Options returns the effective options
func (c *Client) Options() Options { return c.opts }

// Get fetches url, conditionally when Options.Conditional is set and
// validators were committed for it. Failures are ErrorCodeSource, or
// ErrorCodeTimeout when the context ran out
func (c *Client) Get(ctx context.Context, url string) (Result, error) {
	return c.get(ctx, url, c.opts.Conditional)
}

// GetFresh fetches url unconditionally and stages nothing
func (c *Client) GetFresh(ctx context.Context, url string) (Result, error) {
	return c.get(ctx, url, false)
}

func (c *Client) get(ctx context.Context, url string, conditional bool) (Result, error) {
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, perr.Wrapf(err, perr.ErrorCodeTimeout, "fetch %s", url)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return Result{}, perr.Wrapf(err, perr.ErrorCodeConfiguration, "fetch: bad url %q", url)
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", "*/*")
		if conditional {
			if v, ok := c.validators(url); ok {
				if v.etag != "" {
					req.Header.Set("If-None-Match", v.etag)
				}
				if v.lastMod != "" {
					req.Header.Set("If-Modified-Since", v.lastMod)
				}
			}
		}

		start := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, perr.Wrapf(err, perr.ErrorCodeTimeout, "fetch %s", url)
			}
			if attempts >= c.opts.MaxRetries {
				return Result{}, perr.Wrapf(err, perr.ErrorCodeSource, "fetch %s", url)
			}
			back := c.backoff(attempts, 0)
			c.log.Warn().Err(err).Str("url", url).Dur("retry_in", back).Int("attempt", attempts).Msg("fetch transport error retrying")
			if err := c.sleep(ctx, back); err != nil {
				return Result{}, perr.Wrapf(err, perr.ErrorCodeTimeout, "fetch %s", url)
			}
			attempts++
			continue
		}

		c.log.Debug().
			Str("url", url).
			Int("status", resp.StatusCode).
			Int("attempt", attempts).
			Dur("latency", time.Since(start)).
			Msg("fetch response")

		switch {
		case resp.StatusCode == http.StatusNotModified:
			_ = drainAndClose(resp.Body)
			return Result{URL: url, Status: resp.StatusCode, NotModified: true}, nil

		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return c.read(url, resp, conditional)

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			retryAfter := atoi(resp.Header.Get("Retry-After"))
			_ = drainAndClose(resp.Body)
			if attempts >= c.opts.MaxRetries {
				return Result{}, perr.Sourcef("fetch %s: status %d", url, resp.StatusCode)
			}
			back := c.backoff(attempts, retryAfter)
			c.log.Warn().Str("url", url).Int("status", resp.StatusCode).Dur("retry_in", back).Msg("fetch transient status retrying")
			if err := c.sleep(ctx, back); err != nil {
				return Result{}, perr.Wrapf(err, perr.ErrorCodeTimeout, "fetch %s", url)
			}
			attempts++
			continue

		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			_ = resp.Body.Close()
			return Result{}, perr.Sourcef("fetch %s: status %d body %q", url, resp.StatusCode, string(body))
		}
	}
}

func (c *Client) read(url string, resp *http.Response, stage bool) (Result, error) {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxBytes+1))
	if err != nil {
		return Result{}, perr.Wrapf(err, perr.ErrorCodeSource, "fetch %s: read body", url)
	}
	if int64(len(body)) > c.opts.MaxBytes {
		return Result{}, perr.Wrapf(ErrTooLarge, perr.ErrorCodeSource, "fetch %s: %d bytes max", url, c.opts.MaxBytes)
	}

	if stage {
		v := validators{etag: resp.Header.Get("ETag"), lastMod: resp.Header.Get("Last-Modified")}
		if v.etag != "" || v.lastMod != "" {
			c.mu.Lock()
			c.staged[url] = v
			c.mu.Unlock()
		}
	}

	final := url
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	return Result{
		URL:         final,
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func (c *Client) validators(url string) (validators, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.cache[url]
	return v, ok
}

// Commit promotes the validators staged by the last 200 for url, so the
// next Get may come back 304. Without a staged entry the committed ones stay
func (c *Client) Commit(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.staged[url]; ok {
		c.cache[url] = v
		delete(c.staged, url)
	}
}

// Forget drops staged and committed validators for url so the next Get is
// unconditional
func (c *Client) Forget(url string) {
	c.mu.Lock()
	delete(c.cache, url)
	delete(c.staged, url)
	c.mu.Unlock()
}

// wait sleeps for d unless ctx ends first
func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Client) backoff(attempt, retryAfterSec int) time.Duration {
	if retryAfterSec > 0 {
		return min(time.Duration(retryAfterSec)*time.Second, maxBackoff)
	}
	return min(c.opts.RetryBase<<uint(attempt), maxBackoff)
}

func atoi(s string) int {
	i, _ := strconv.Atoi(s)
	return i
}

func drainAndClose(rc io.ReadCloser) error {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 512))
	return rc.Close()
}
