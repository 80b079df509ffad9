// Package httpapi is the outbound JSON client shared by every remote
// provider: transaction history, token metadata and price sources.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/solfeat/service/metrics"
)

// maxErrorBody bounds how much of an error response is kept for logging.
const maxErrorBody = 512

// StatusError is returned when a provider answers with a non-2xx status.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s request failed with status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// IsRateLimited reports whether err is a 429 response from a provider.
func IsRateLimited(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests
}

// Options configures a Client.
type Options struct {
	// Provider labels logs and metrics (e.g. "helius", "jupiter").
	Provider string
	// Timeout bounds each request. Zero means 30 seconds.
	Timeout time.Duration
	// Delay is slept after every successful call to respect provider rate limits.
	Delay time.Duration
	// Transport overrides the HTTP transport, mostly for tests.
	Transport http.RoundTripper
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Client performs JSON requests against a single provider.
type Client struct {
	provider   string
	httpClient *http.Client
	delay      time.Duration
	logger     *slog.Logger
}

// NewClient creates a provider client. Calls are instrumented when opts.Metrics is set.
func NewClient(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		provider: opts.Provider,
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: metrics.InstrumentedTransport(opts.Metrics, opts.Provider, opts.Transport),
		},
		delay:  opts.Delay,
		logger: opts.Logger.With("provider", opts.Provider),
	}
}

// Provider returns the provider label of the client.
func (c *Client) Provider() string {
	return c.provider
}

// GetJSON issues a GET and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(ctx, req, headers, out)
}

// PostJSON marshals body, issues a POST and decodes the JSON response into out.
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(ctx, req, headers, out)
}

func (c *Client) do(ctx context.Context, req *http.Request, headers map[string]string, out any) error {
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send %s request: %w", c.provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Provider: c.provider, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", c.provider, err)
		}
	}

	if err := Sleep(ctx, c.delay); err != nil {
		return err
	}
	return nil
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
