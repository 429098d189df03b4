package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultTimeout bounds one direct page fetch.
	DefaultTimeout = 15 * time.Second

	// DefaultUserAgent mimics a desktop Chrome build.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	maxBodyBytes = 8 << 20
)

// BrowserHeaders are sent with every request in both modes.
var BrowserHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.5",
	"Upgrade-Insecure-Requests": "1",
}

// DirectOptions configures the direct fetcher.
type DirectOptions struct {
	Timeout        time.Duration
	UserAgent      string
	HostRatePerSec float64 // 0 disables per-host shaping
}

// Direct fetches pages with a single HTTP GET and no script execution.
type Direct struct {
	client    *http.Client
	userAgent string
	limiter   *HostLimiter
}

// NewDirect constructs a direct fetcher with a shared HTTP client.
func NewDirect(opts DirectOptions) *Direct {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	return &Direct{
		client:    &http.Client{Timeout: opts.Timeout},
		userAgent: opts.UserAgent,
		limiter:   NewHostLimiter(opts.HostRatePerSec),
	}
}

func (d *Direct) Mode() Mode { return ModeDirect }

// Open returns a session sharing the fetcher's HTTP client.
func (d *Direct) Open(context.Context) (Session, error) { return directSession{d}, nil }

type directSession struct{ d *Direct }

func (s directSession) Fetch(ctx context.Context, url string) (*Page, error) {
	return s.d.Get(ctx, url)
}

func (directSession) Close() error { return nil }

// Get retrieves and parses one document.
func (d *Direct) Get(ctx context.Context, url string) (*Page, error) {
	if err := d.limiter.Wait(ctx, url); err != nil {
		return nil, newFailure(url, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Failure{URL: url, Kind: KindNetwork, Cause: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("User-Agent", d.userAgent)
	for k, v := range BrowserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, newFailure(url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, newFailure(url, fmt.Errorf("read body: %w", err))
	}

	if err := checkStatus(url, resp.StatusCode); err != nil {
		return nil, err
	}

	return parse(url, resp.StatusCode, string(body))
}
