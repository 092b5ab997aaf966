// Package webhook posts classification reports to HTTP endpoints.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/ccollicutt/gotestlog/pkg/config"
	"github.com/ccollicutt/gotestlog/pkg/output"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 10 * time.Second

	// RunHeader carries the report's run ID.
	RunHeader = "X-Gotestlog-Run"

	// DefaultInterval is the minimum spacing between dispatched requests.
	DefaultInterval = 200 * time.Millisecond

	maxResponseBody = 1 << 20
)

// Client sends reports to webhook endpoints.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithUserAgent sets the User-Agent header sent with each request.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a new webhook client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{},
		userAgent:  "gotestlog-webhook",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendOptions configures a webhook request.
type SendOptions struct {
	URL     string
	Token   string        // Bearer token (optional)
	Timeout time.Duration // Request timeout (uses DefaultTimeout if zero)
}

// Response contains the result of a webhook request.
type Response struct {
	StatusCode int
	Body       string
	Duration   time.Duration
	Error      error
}

// Success returns true if the webhook was sent successfully (2xx status).
func (r *Response) Success() bool {
	return r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Send posts a report to a webhook endpoint.
func (c *Client) Send(ctx context.Context, report *output.Report, opts SendOptions) *Response {
	start := time.Now()
	resp := &Response{}
	fail := func(err error) *Response {
		resp.Error = err
		resp.Duration = time.Since(start)
		return resp
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return fail(fmt.Errorf("failed to marshal report: %w", err))
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.URL, bytes.NewReader(payload))
	if err != nil {
		return fail(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if report.Metadata.RunID != "" {
		req.Header.Set(RunHeader, report.Metadata.RunID)
	}
	if opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.Token)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(fmt.Errorf("request failed: %w", err))
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return fail(fmt.Errorf("failed to read response: %w", err))
	}

	resp.StatusCode = httpResp.StatusCode
	resp.Body = string(body)
	resp.Duration = time.Since(start)

	if resp.StatusCode >= 400 {
		resp.Error = fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return resp
}

// Result pairs a configured endpoint with its response. Skipped is set
// when the trigger did not fire; Response is nil in that case.
type Result struct {
	Webhook  config.WebhookConfig
	Skipped  bool
	Response *Response
}

// Name returns the webhook's name, falling back to its URL.
func (r Result) Name() string {
	if r.Webhook.Name != "" {
		return r.Webhook.Name
	}
	return r.Webhook.URL
}

// ShouldFire reports whether a webhook with the given trigger fires for a
// run that did or did not produce error records.
func ShouldFire(trigger config.WebhookTrigger, hasErrors bool) bool {
	switch trigger {
	case config.WebhookTriggerAlways:
		return true
	case config.WebhookTriggerNever:
		return false
	default:
		return hasErrors
	}
}

// Dispatcher sends a report to several endpoints in order, spacing the
// requests with a rate limiter.
type Dispatcher struct {
	client  *Client
	limiter *rate.Limiter
}

// NewDispatcher creates a dispatcher. An interval of zero disables spacing.
func NewDispatcher(client *Client, interval time.Duration) *Dispatcher {
	if client == nil {
		client = NewClient()
	}
	d := &Dispatcher{client: client}
	if interval > 0 {
		d.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	return d
}

// Dispatch sends the report to every webhook whose trigger fires. It
// returns one result per webhook, in order. A cancelled context stops
// the remaining sends and is returned as the error.
func (d *Dispatcher) Dispatch(ctx context.Context, hooks []config.WebhookConfig, report *output.Report) ([]Result, error) {
	results := make([]Result, 0, len(hooks))
	for _, wh := range hooks {
		if !ShouldFire(wh.Trigger, report.HasErrors()) {
			results = append(results, Result{Webhook: wh, Skipped: true})
			continue
		}

		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return results, err
			}
		}

		resp := d.client.Send(ctx, report, SendOptions{
			URL:     wh.URL,
			Token:   wh.Token,
			Timeout: wh.Timeout,
		})
		results = append(results, Result{Webhook: wh, Response: resp})
	}
	return results, nil
}
