package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/yomogi/webarc/internal/model"
)

// ErrTooManyRedirects is returned when a fetch exceeds the redirect cap.
var ErrTooManyRedirects = errors.New("fetch: too many redirects")

// ErrBodyTooLarge is returned when a response body exceeds the size cap.
var ErrBodyTooLarge = errors.New("fetch: response body too large")

// Fetcher performs single-page HTTP fetches. It is safe for concurrent use;
// the workers of a crawl share one Fetcher.
type Fetcher struct {
	// client is the HTTP client. Redirect handling is installed by New.
	client *http.Client

	// timeout bounds each individual fetch, redirects included.
	timeout time.Duration

	// maxBodySize caps how many body bytes are read. A body that exceeds
	// the cap fails the fetch rather than being silently truncated, since a
	// partial archive record would be worse than none.
	maxBodySize int64

	// userAgent is sent as the User-Agent header on every request.
	userAgent string

	// headers are extra request headers applied after the defaults.
	headers map[string]string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the per-fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithMaxBodySize sets the maximum response body size in bytes.
func WithMaxBodySize(size int64) Option {
	return func(f *Fetcher) {
		f.maxBodySize = size
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithHeaders sets extra request headers sent with every fetch.
func WithHeaders(headers map[string]string) Option {
	return func(f *Fetcher) {
		f.headers = headers
	}
}

// New creates a Fetcher. The base client's transport is reused but its
// redirect policy is replaced with one capped at maxRedirects hops.
//
// Design decision: We take an external *http.Client rather than building one
// because:
//  1. Tests can inject httptest server clients
//  2. Proxy or TLS configuration stays the caller's concern
//  3. Consistent with how the frontier takes an external HostGate
func New(client *http.Client, maxRedirects int, opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout:     30 * time.Second,
		maxBodySize: 10 * 1024 * 1024, // 10MB
		userAgent:   "webarc/1.0",
	}
	for _, opt := range opts {
		opt(f)
	}

	c := *client
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return ErrTooManyRedirects
		}
		return nil
	}
	f.client = &c

	return f
}

// Fetch retrieves a single URL. On success the returned FetchResult carries
// the full body, the response headers, and the final URL after redirects.
// Any HTTP status is a successful fetch; only transport-level problems,
// redirect loops, and oversized bodies are errors.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*model.FetchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: build request for %s: %w", rawURL, err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	// Read one byte past the cap so an exactly-full read can be told apart
	// from an oversized body.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("fetch: read body of %s: %w", rawURL, err)
	}
	if int64(len(body)) > f.maxBodySize {
		return nil, fmt.Errorf("fetch: %s: %w (max %d bytes)", rawURL, ErrBodyTooLarge, f.maxBodySize)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &model.FetchResult{
		ID:         uuid.New(),
		URL:        rawURL,
		FinalURL:   finalURL,
		StatusCode: resp.StatusCode,
		Proto:      resp.Proto,
		Headers:    resp.Header,
		Body:       body,
		Duration:   time.Since(start),
		FetchedAt:  start.UTC(),
	}, nil
}
