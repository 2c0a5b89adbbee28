package kasa

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// contains http utils to deal with remote services

// HTTPOptions configures the client shared by network sources.
type HTTPOptions struct {
	Timeout     time.Duration // per request, retries included. DefaultTimeout if zero
	Attempts    int           // total attempts for transient failures, 3 if zero
	Backoff     time.Duration // first retry delay, doubled each time. 800ms if zero
	MaxBackoff  time.Duration // cap of a single delay, 8s if zero
	RatePerHost rate.Limit    // sustained requests per second, unlimited if zero
	CacheTTL    time.Duration // successful GET responses are reused for that long, no cache if zero
	UserAgent   string
	Logger      *log.Logger
}

// NewHTTPClient returns a client with a timeout, a retrying transport with
// capped exponential backoff, and optionally rate limiting and a short lived
// response cache.
func NewHTTPClient(opts HTTPOptions) *http.Client {
	return &http.Client{
		Timeout:   defaultDuration(opts.Timeout, DefaultTimeout),
		Transport: NewTransport(http.DefaultTransport, opts),
	}
}

// NewTransport wraps base with the retry, rate and cache layers of opts.
func NewTransport(base http.RoundTripper, opts HTTPOptions) http.RoundTripper {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	rt := &retryTransport{
		base:       base,
		attempts:   opts.Attempts,
		backoff:    defaultDuration(opts.Backoff, 800*time.Millisecond),
		maxBackoff: defaultDuration(opts.MaxBackoff, 8*time.Second),
		userAgent:  opts.UserAgent,
		logger:     logger,
	}
	if rt.attempts <= 0 {
		rt.attempts = 3
	}
	if rt.userAgent == "" {
		rt.userAgent = "kasa/1 (+https://github.com/etnz/kasa)"
	}
	if opts.RatePerHost > 0 {
		rt.limiters = make(map[string]*rate.Limiter)
		rt.rate = opts.RatePerHost
	}
	if opts.CacheTTL <= 0 {
		return rt
	}
	return &memCache{base: rt, store: cache.New(opts.CacheTTL, 2*opts.CacheTTL), logger: logger}
}

func defaultDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// retryTransport retries idempotent requests on transport errors, 429 and
// 5xx responses.
type retryTransport struct {
	base       http.RoundTripper
	attempts   int
	backoff    time.Duration
	maxBackoff time.Duration
	userAgent  string
	logger     *log.Logger

	rate     rate.Limit
	mu       sync.Mutex
	limiters map[string]*rate.Limiter // per host
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	idempotent := req.Method == http.MethodGet || req.Method == http.MethodHead
	ctx := req.Context()

	for attempt := 1; ; attempt++ {
		if err := t.wait(ctx, req.URL.Host); err != nil {
			return nil, err
		}
		resp, err := t.base.RoundTrip(req)
		if !idempotent || attempt >= t.attempts || !retryable(ctx, resp, err) {
			return resp, err
		}

		delay := t.delay(attempt, resp)
		if err != nil {
			t.logger.Printf("%v %v/%v failed (attempt %d/%d): %v, retry in %v", req.Method, req.URL.Host, req.URL.Path, attempt, t.attempts, err, delay)
		} else {
			t.logger.Printf("%v %v/%v %v (attempt %d/%d), retry in %v", req.Method, req.URL.Host, req.URL.Path, resp.Status, attempt, t.attempts, delay)
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// retryable reports transient failures. A cancelled request is not one.
func retryable(ctx context.Context, resp *http.Response, err error) bool {
	if err != nil {
		return ctx.Err() == nil
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
}

// delay returns the wait before the next attempt: Retry-After when the
// server sent one, else exponential backoff. Both are capped.
func (t *retryTransport) delay(attempt int, resp *http.Response) time.Duration {
	d := t.backoff << (attempt - 1)
	if resp != nil {
		if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && s >= 0 {
			d = time.Duration(s) * time.Second
		}
	}
	if d > t.maxBackoff || d < 0 {
		d = t.maxBackoff
	}
	return d
}

func (t *retryTransport) wait(ctx context.Context, host string) error {
	if t.limiters == nil {
		return nil
	}
	t.mu.Lock()
	l, ok := t.limiters[host]
	if !ok {
		l = rate.NewLimiter(t.rate, 1)
		t.limiters[host] = l
	}
	t.mu.Unlock()
	return l.Wait(ctx)
}

// memCache keeps successful GET responses in memory for a short time, so
// that a manual refresh right after a scheduled one does not hit upstreams
// twice.
type memCache struct {
	base   http.RoundTripper
	store  *cache.Cache
	logger *log.Logger
}

func (c *memCache) RoundTrip(req *http.Request) (resp *http.Response, err error) {
	if req.Method != http.MethodGet {
		return c.base.RoundTrip(req)
	}
	key := req.URL.String()
	if content, found := c.store.Get(key); found { // Cache hit
		return http.ReadResponse(bufio.NewReader(bytes.NewReader(content.([]byte))), req)
	}

	resp, err = c.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	c.logger.Printf("%v %v/%v %v", resp.Request.Method, resp.Request.URL.Host, resp.Request.URL.Path, resp.Status)
	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}

	content, err := httputil.DumpResponse(resp, true)
	if err != nil {
		c.logger.Printf("cache write err (ignored): %v", err)
		return resp, nil
	}
	c.store.SetDefault(key, content)
	return resp, nil
}

// GetBody performs an HTTP GET and returns the body of a 200 response.
func GetBody(ctx context.Context, client *http.Client, addr string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		// url.Error quotes the full address, api keys included.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, fmt.Errorf("cannot http GET %v/%v: %w", req.URL.Host, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cannot http GET %v/%v: %v", req.URL.Host, req.URL.Path, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// GetJSON performs an HTTP GET request and unmarshals the JSON response into data.
func GetJSON(ctx context.Context, client *http.Client, addr string, data any) error {
	body, err := GetBody(ctx, client, addr)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, data); err != nil {
		return fmt.Errorf("malformed json: %w", err)
	}
	return nil
}
