// Package fetcher retrieves per-member statistics from external judges and
// maps the responses into domain profiles. Fetchers are read-only and never
// retry; persistence and fallback belong to the reconciler.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/okian/judgeboard/pkg/metrics"
	"golang.org/x/time/rate"
)

const (
	defaultUserAgent   = "judgeboard/1.0"
	defaultHTTPTimeout = 15 * time.Second
	maxBodyBytes       = 4 << 20
)

// Doer is the transport used by Client. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is the network fetch primitive shared by the source adapters: a
// paced HTTP client bound to one judge host.
type Client struct {
	doer      Doer
	limiter   *rate.Limiter
	userAgent string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithDoer replaces the underlying HTTP transport.
func WithDoer(d Doer) ClientOption {
	return func(c *Client) {
		if d != nil {
			c.doer = d
		}
	}
}

// WithRateLimit paces outbound requests with a token bucket. A non-positive
// limit disables pacing.
func WithRateLimit(perSecond float64, burst int) ClientOption {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient creates a client with a bounded default timeout and no pacing.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		doer:      &http.Client{Timeout: defaultHTTPTimeout},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// response is the raw outcome of one request.
type response struct {
	status int
	body   []byte
}

// get issues a GET to rawURL with query parameters.
func (c *Client) get(ctx context.Context, rawURL string, query url.Values) (response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return response{}, fmt.Errorf("parse url: %w", err)
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return response{}, fmt.Errorf("build request: %w", err)
	}
	return c.do(ctx, req)
}

// postJSON issues a POST with a JSON body.
func (c *Client) postJSON(ctx context.Context, rawURL string, body []byte) (response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(ctx, req)
}

func (c *Client) do(ctx context.Context, req *http.Request) (response, error) {
	if c.limiter != nil && !c.limiter.Allow() {
		metrics.RecordRateLimitWait(req.URL.Host)
		if err := c.limiter.Wait(ctx); err != nil {
			return response{}, fmt.Errorf("rate limit: %w", err)
		}
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return response{}, fmt.Errorf("read body: %w", err)
	}
	return response{status: resp.StatusCode, body: body}, nil
}

// classifyStatus maps a non-2xx status to a failure kind.
func classifyStatus(status int) Kind {
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusTooManyRequests, status >= http.StatusInternalServerError:
		return KindUnreachable
	default:
		return KindMalformed
	}
}
