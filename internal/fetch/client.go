package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"apirelay/internal/metrics"
)

const defaultTimeout = 30 * time.Second

// Options configures the fetch Client.
type Options struct {
	Timeout   time.Duration
	UserAgent string
}

// Client performs ordered-failover GETs against endpoint URL chains. It
// owns one shared http.Client whose connections are released exactly once
// via Close.
type Client struct {
	http   *http.Client
	ua     string
	logger *zap.Logger
}

// NewClient builds a Client with pooled transport and a fixed per-request
// timeout.
func NewClient(opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	metrics.Init()
	return &Client{
		http: &http.Client{
			Timeout:   timeout,
			Transport: newHTTPTransport(),
		},
		ua:     opts.UserAgent,
		logger: logger,
	}
}

// Close releases the client's pooled connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// FetchRaw tries each URL in order with a single GET carrying params as
// query values. The first success wins and is classified by Content-Type:
// application/json decodes to a JSON value, text/* becomes trimmed text,
// anything else raw bytes. With probeOnly set it returns after the status
// check without consuming the body. Per-URL failures are logged and the
// next URL is tried; total exhaustion returns an AllFailedError carrying
// the last URL's underlying error.
func (c *Client) FetchRaw(ctx context.Context, urls []string, params map[string]string, probeOnly bool) (Result, error) {
	var (
		lastErr error
		lastURL string
	)
	for _, u := range urls {
		res, err := c.fetchOne(ctx, u, params, probeOnly)
		if err != nil {
			lastErr = err
			lastURL = u
			metrics.ObserveFetch(u, "error", 0)
			c.logger.Warn("fetch attempt failed", zap.String("url", u), zap.Error(err))
			continue
		}
		return res, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no urls to fetch")
	}
	return Result{}, &AllFailedError{URL: lastURL, Err: lastErr}
}

func (c *Client) fetchOne(ctx context.Context, rawURL string, params map[string]string, probeOnly bool) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	if len(params) > 0 {
		q := req.URL.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}
	if c.ua != "" {
		req.Header.Set("User-Agent", c.ua)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if probeOnly {
		metrics.ObserveFetch(rawURL, "success", 0)
		return Result{}, nil
	}

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	switch {
	case strings.Contains(ct, "application/json"):
		var v any
		if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
			return Result{}, fmt.Errorf("decode json body: %w", err)
		}
		metrics.ObserveFetch(rawURL, "success", 0)
		return JSONResult(v), nil
	case strings.Contains(ct, "text/"):
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return Result{}, fmt.Errorf("read text body: %w", err)
		}
		metrics.ObserveFetch(rawURL, "success", len(body))
		return TextResult(strings.TrimSpace(string(body))), nil
	default:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return Result{}, fmt.Errorf("read body: %w", err)
		}
		metrics.ObserveFetch(rawURL, "success", len(body))
		return BytesResult(body), nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
