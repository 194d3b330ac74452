package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/facultyload/facultyload/pkg/types"
	"github.com/facultyload/facultyload/server/internal/config"
)

// Upstream actions understood by the script.
const (
	ActionWorkload = "workload"
	ActionInsights = "insights"
)

// ErrUpstream marks every failure to obtain usable data from the upstream.
var ErrUpstream = errors.New("upstream unavailable")

// ErrNotConfigured is returned when no source URL is configured.
var ErrNotConfigured = fmt.Errorf("%w: source url not configured", ErrUpstream)

// Fetcher is the subset of Client used by the dataset loader and the API.
type Fetcher interface {
	FetchRows(ctx context.Context) ([]types.RawRow, error)
	FetchInsights(ctx context.Context) (types.Insights, error)
	Endpoint() string
}

// Client talks to the upstream script over HTTP. It is safe for concurrent use.
type Client struct {
	endpoint string
	client   *http.Client
	retry    config.RetryConfig
}

// New builds a Client from the source configuration. An empty URL yields a
// Client whose fetches fail with ErrNotConfigured, so the server still runs
// on the demo dataset.
func New(cfg config.SourceConfig) *Client {
	return &Client{
		endpoint: cfg.URL,
		client:   buildHTTPClient(cfg),
		retry:    cfg.Retry,
	}
}

// Endpoint returns the configured script URL.
func (c *Client) Endpoint() string { return c.endpoint }

// FetchRows retrieves the raw wide rows (action=workload).
func (c *Client) FetchRows(ctx context.Context) ([]types.RawRow, error) {
	body, err := c.get(ctx, ActionWorkload)
	if err != nil {
		return nil, err
	}
	return decodeRows(body)
}

// FetchInsights retrieves the upstream summary and recommendations (action=insights).
func (c *Client) FetchInsights(ctx context.Context) (types.Insights, error) {
	body, err := c.get(ctx, ActionInsights)
	if err != nil {
		return types.Insights{}, err
	}
	return decodeInsights(body)
}

func (c *Client) get(ctx context.Context, action string) ([]byte, error) {
	if c.endpoint == "" {
		return nil, ErrNotConfigured
	}
	target, err := withAction(c.endpoint, action)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	start := time.Now()
	body, err := doWithRetry(ctx, c.client, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Accept-Encoding", acceptEncoding)
		return req, nil
	}, c.retry)
	if err != nil {
		slog.Warn("source: fetch failed", "action", action, "elapsed", time.Since(start), "err", err)
		return nil, fmt.Errorf("%w: %s: %w", ErrUpstream, action, err)
	}
	slog.Debug("source: fetched", "action", action, "bytes", len(body), "elapsed", time.Since(start))
	return body, nil
}

// withAction appends the action query parameter to the script URL,
// preserving any parameters already present.
func withAction(endpoint, action string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse source url: %w", err)
	}
	q := u.Query()
	q.Set("action", action)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
