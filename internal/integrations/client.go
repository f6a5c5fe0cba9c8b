package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"helpdesk_backend/platform/redact"
	"helpdesk_backend/platform/ssrf"
)

const (
	defaultTimeout   = 15 * time.Second
	maxResponseBytes = 1 << 20
	maxErrorBody     = 512
)

// HTTPError is a non-2xx answer from an integration.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("integration returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("integration returned status %d: %s", e.StatusCode, e.Body)
}

// Client sends JSON requests to integration endpoints. Each URL passes the
// SSRF guard first and requests are rate limited per host.
type Client struct {
	http     *http.Client
	guard    func(string) error
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

type ClientOption func(*Client)

// WithURLGuard replaces ssrf.ValidateURL.
func WithURLGuard(guard func(string) error) ClientOption {
	return func(c *Client) { c.guard = guard }
}

// WithRateLimit sets the per-host request rate.
func WithRateLimit(limit rate.Limit, burst int) ClientOption {
	return func(c *Client) {
		c.limit = limit
		c.burst = burst
	}
}

// NewClient uses httpClient when given and an SSRF-safe client otherwise.
func NewClient(httpClient *http.Client, opts ...ClientOption) *Client {
	if httpClient == nil {
		httpClient = ssrf.NewClient(defaultTimeout)
	}
	c := &Client{
		http:     httpClient,
		guard:    ssrf.ValidateURL,
		limit:    rate.Limit(5),
		burst:    10,
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[host]
	if !ok {
		l = rate.NewLimiter(c.limit, c.burst)
		c.limiters[host] = l
	}
	return l
}

// PostJSON posts body to rawURL and decodes the response into out when out is
// non-nil. The decoded response object is returned for the integration log.
func (c *Client) PostJSON(ctx context.Context, rawURL string, headers map[string]string, body any, out any) (map[string]any, error) {
	if err := c.guard(rawURL); err != nil {
		return nil, err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if err := c.limiter(u.Host).Wait(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: redact.Truncate(strings.TrimSpace(string(raw)), maxErrorBody)}
	}

	var snapshot map[string]any
	if len(bytes.TrimSpace(raw)) > 0 {
		_ = json.Unmarshal(raw, &snapshot)
		if out != nil {
			if err := json.Unmarshal(raw, out); err != nil {
				return snapshot, fmt.Errorf("decode response: %w", err)
			}
		}
	}
	return snapshot, nil
}

func joinURL(base string, segments ...string) string {
	out := strings.TrimRight(strings.TrimSpace(base), "/")
	for _, s := range segments {
		out += "/" + strings.Trim(s, "/")
	}
	return out
}
