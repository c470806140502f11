// Package screener fetches Screener.in company pages and extracts the
// headline metrics from their markup.
package screener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/finsight/internal/common"
	"github.com/ternarybob/finsight/internal/httpclient"
	"github.com/ternarybob/finsight/internal/interfaces"
)

const (
	// DefaultBaseURL is the Screener.in site root.
	DefaultBaseURL = "https://www.screener.in"

	// DefaultTimeout bounds a single page request.
	DefaultTimeout = 15 * time.Second

	// DefaultMaxBodySize caps the bytes read from a page.
	DefaultMaxBodySize = 5 * 1024 * 1024

	// DefaultUserAgent is a desktop Chrome user agent.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// ErrUnexpectedStatus is wrapped by StatusError for any non-2xx response.
var ErrUnexpectedStatus = errors.New("unexpected status")

// ErrBodyTooLarge is returned when a page exceeds the configured body cap.
var ErrBodyTooLarge = errors.New("response body exceeds size limit")

// StatusError reports a non-2xx response for a company page.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("screener: unexpected status %d for %s", e.StatusCode, e.URL)
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

// Client retrieves company pages. It never retries.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	logger      arbor.ILogger
	limiter     *rate.Limiter
	maxBodySize int64
	headers     http.Header
}

var _ interfaces.PageFetcher = (*Client)(nil)

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithUserAgent sets the User-Agent sent with the browser header set.
func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) {
		if userAgent != "" {
			c.headers = httpclient.BrowserHeaders(userAgent)
		}
	}
}

// WithMinInterval spaces consecutive requests by at least d. Zero disables
// the limiter.
func WithMinInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		if d <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithMaxBodySize caps the number of bytes read from a response.
func WithMaxBodySize(n int64) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// NewClient creates a page client with browser-like headers.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		httpClient:  httpclient.NewDefaultHTTPClient(DefaultTimeout),
		maxBodySize: DefaultMaxBodySize,
		headers:     httpclient.BrowserHeaders(DefaultUserAgent),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewClientFromConfig builds a Client from the [screener] config section.
func NewClientFromConfig(config common.ScreenerConfig, logger arbor.ILogger) (*Client, error) {
	httpClient, err := httpclient.NewBrowserClient(config.Timeout, config.UserAgent)
	if err != nil {
		return nil, err
	}

	return NewClient(
		WithBaseURL(config.BaseURL),
		WithHTTPClient(httpClient),
		WithUserAgent(config.UserAgent),
		WithLogger(logger),
		WithMinInterval(config.RateLimit),
		WithMaxBodySize(config.MaxBodySize),
	), nil
}

// PageURL returns the company page URL for slug.
func (c *Client) PageURL(slug string) string {
	segments := strings.Split(strings.Trim(slug, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/company/%s/", c.baseURL, strings.Join(segments, "/"))
}

// Fetch issues one GET for the company page of slug and returns the body.
func (c *Client) Fetch(ctx context.Context, slug string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	pageURL := c.PageURL(slug)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range c.headers {
		req.Header[key] = append([]string(nil), values...)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: pageURL}
	}

	// One byte past the cap tells a truncated page from one that fits
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", pageURL, err)
	}
	if int64(len(body)) > c.maxBodySize {
		return nil, fmt.Errorf("%s: %w (%d bytes)", pageURL, ErrBodyTooLarge, c.maxBodySize)
	}

	if c.logger != nil {
		c.logger.Debug().
			Str("url", pageURL).
			Int("status", resp.StatusCode).
			Int("bytes", len(body)).
			Dur("duration", time.Since(start)).
			Msg("Company page fetched")
	}

	return body, nil
}
