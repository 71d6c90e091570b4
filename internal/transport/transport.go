// Package transport performs HTTP metadata requests and file downloads
// through a single shared client.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	DefaultTimeout        = 30 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultUserAgent      = "strata"

	idleConnTimeout     = 90 * time.Second
	maxIdleConnsPerHost = 10
)

// ErrConfigured is returned by Configure once the shared client has been built.
var ErrConfigured = errors.New("transport client already initialized")

// Options tune the HTTP client.
type Options struct {
	Timeout        time.Duration
	ConnectTimeout time.Duration
	UserAgent      string
	// Token is sent as a bearer token on JSON metadata requests only.
	Token string
}

// DefaultOptions returns the options used when Configure is never called.
func DefaultOptions() Options {
	return Options{
		Timeout:        DefaultTimeout,
		ConnectTimeout: DefaultConnectTimeout,
		UserAgent:      DefaultUserAgent,
	}
}

// Client wraps an *http.Client with the request conventions strata uses.
type Client struct {
	http      *http.Client
	userAgent string
	token     string
}

// New builds a client from opts. It fails if the options are unusable.
func New(opts Options) (*Client, error) {
	if opts.Timeout <= 0 {
		return nil, fmt.Errorf("invalid timeout %v", opts.Timeout)
	}
	if opts.ConnectTimeout <= 0 {
		return nil, fmt.Errorf("invalid connect timeout %v", opts.ConnectTimeout)
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		return nil, errors.New("user agent is empty")
	}
	if strings.ContainsAny(opts.UserAgent, "\r\n") {
		return nil, fmt.Errorf("invalid user agent %q", opts.UserAgent)
	}

	dialer := &net.Dialer{
		Timeout:   opts.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		ForceAttemptHTTP2:   true,
		TLSHandshakeTimeout: opts.ConnectTimeout,
		IdleConnTimeout:     idleConnTimeout,
		MaxIdleConnsPerHost: maxIdleConnsPerHost,
	}

	return &Client{
		http:      &http.Client{Timeout: opts.Timeout, Transport: tr},
		userAgent: opts.UserAgent,
		token:     strings.TrimSpace(opts.Token),
	}, nil
}

var (
	mu         sync.Mutex
	configured = DefaultOptions()
	built      bool

	shared = sync.OnceValues(func() (*Client, error) {
		mu.Lock()
		defer mu.Unlock()
		built = true
		c, err := New(configured)
		if err != nil {
			return nil, fmt.Errorf("failed to build HTTP client: %w", err)
		}
		return c, nil
	})
)

// Configure replaces the options of the shared client. It only has an
// effect before the first request; afterwards it returns ErrConfigured.
func Configure(opts Options) error {
	mu.Lock()
	defer mu.Unlock()
	if built {
		return ErrConfigured
	}
	configured = opts
	return nil
}

// Default returns the shared client, building it on first use. A build
// failure is remembered and returned to every caller.
func Default() (*Client, error) {
	return shared()
}

// FetchJSON decodes the JSON document at url into v using the shared client.
func FetchJSON(ctx context.Context, url string, v any) error {
	c, err := Default()
	if err != nil {
		return &Error{Kind: KindNetwork, URL: url, Err: err}
	}
	return c.FetchJSON(ctx, url, v)
}

// DownloadToFile streams url into dest using the shared client.
func DownloadToFile(ctx context.Context, url, dest string, progress ProgressFunc) error {
	c, err := Default()
	if err != nil {
		return &Error{Kind: KindNetwork, URL: url, Err: err}
	}
	return c.DownloadToFile(ctx, url, dest, progress)
}

// FetchJSON performs a GET request and decodes a 2xx response body into v.
func (c *Client) FetchJSON(ctx context.Context, url string, v any) error {
	if strings.TrimSpace(url) == "" {
		return &Error{Kind: KindInvalidResponse, Err: errors.New("URL cannot be empty")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &Error{Kind: KindNetwork, URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &Error{Kind: KindInvalidResponse, URL: url, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, URL: req.URL.String(), Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		_ = resp.Body.Close()
		return nil, &Error{
			Kind:       KindRequestFailed,
			StatusCode: resp.StatusCode,
			URL:        req.URL.String(),
			Err:        errors.New(SummarizeBody(body)),
		}
	}
	return resp, nil
}

// SummarizeBody returns a short summary of an HTTP response body suitable
// for error messages.
func SummarizeBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if s == "" {
		return "empty body"
	}
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
