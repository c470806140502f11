package httpclient

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// BrowserHeaders returns the fixed header set sent with page requests.
// Accept-Encoding is left to the transport so gzip bodies are decoded
// transparently.
func BrowserHeaders(userAgent string) http.Header {
	h := make(http.Header)
	h.Set("User-Agent", userAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.5")
	h.Set("Connection", "keep-alive")
	h.Set("Upgrade-Insecure-Requests", "1")
	return h
}

// NewDefaultHTTPClient creates a simple HTTP client with a timeout
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}

// NewBrowserClient creates an HTTP client with a cookie jar that stamps the
// browser header set onto every request that does not already carry it.
func NewBrowserClient(timeout time.Duration, userAgent string) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &http.Client{
		Jar:     jar,
		Timeout: timeout,
		Transport: &headerTransport{
			base:    http.DefaultTransport,
			headers: BrowserHeaders(userAgent),
		},
	}, nil
}

type headerTransport struct {
	base    http.RoundTripper
	headers http.Header
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrip must not modify the caller's request
	r := req.Clone(req.Context())
	for key, values := range t.headers {
		if r.Header.Get(key) == "" {
			r.Header[key] = append([]string(nil), values...)
		}
	}
	return t.base.RoundTrip(r)
}
